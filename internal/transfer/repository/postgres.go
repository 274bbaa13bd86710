package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertTransferQuery = `
    INSERT INTO stock_transfers (
        id, transfer_number, from_warehouse_id, to_warehouse_id, status,
        priority, requested_by, approved_by, received_by, approved_at,
        completed_at, notes, created_at, updated_at
    )
    VALUES (
        :id, :transfer_number, :from_warehouse_id, :to_warehouse_id, :status,
        :priority, :requested_by, :approved_by, :received_by, :approved_at,
        :completed_at, :notes, :created_at, :updated_at
    )
`

const insertTransferLineQuery = `
    INSERT INTO transfer_lines (
        id, transfer_id, product_id, source_lot_id, quantity,
        unit_cost, batch_number, status
    )
    VALUES (
        :id, :transfer_id, :product_id, :source_lot_id, :quantity,
        :unit_cost, :batch_number, :status
    )
`

func (r *PGRepository) Create(ctx context.Context, transfer *model.StockTransfer, lines []model.TransferLine) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertTransferQuery, transfer); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	for i := range lines {
		if _, err := tx.NamedExecContext(ctx, insertTransferLineQuery, &lines[i]); err != nil {
			return fmt.Errorf("failed to insert transfer line: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, transfer *model.StockTransfer) error {
	transfer.UpdatedAt = time.Now()
	query := `
        UPDATE stock_transfers
        SET status = :status,
            approved_by = :approved_by,
            received_by = :received_by,
            approved_at = :approved_at,
            completed_at = :completed_at,
            notes = :notes,
            updated_at = :updated_at
        WHERE id = :id
    `
	result, err := r.DB.NamedExecContext(ctx, query, transfer)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("transfer %s not found", transfer.ID)
	}
	return nil
}

func (r *PGRepository) UpdateLines(ctx context.Context, lines []model.TransferLine) error {
	query := `UPDATE transfer_lines SET status = :status WHERE id = :id`
	for i := range lines {
		if _, err := r.DB.NamedExecContext(ctx, query, &lines[i]); err != nil {
			return fmt.Errorf("failed to update transfer line %s: %w", lines[i].ID, err)
		}
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.StockTransfer, error) {
	var transfer model.StockTransfer
	query := `SELECT * FROM stock_transfers WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &transfer, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *PGRepository) FindByNumber(ctx context.Context, number string) (*model.StockTransfer, error) {
	var transfer model.StockTransfer
	query := `SELECT * FROM stock_transfers WHERE transfer_number = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &transfer, query, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.TransferFilters) ([]model.StockTransfer, int, error) {
	var transfers []model.StockTransfer
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.FromWarehouseID != "" {
		conditions = append(conditions, "from_warehouse_id = :from_warehouse_id")
		args["from_warehouse_id"] = f.FromWarehouseID
	}
	if f.ToWarehouseID != "" {
		conditions = append(conditions, "to_warehouse_id = :to_warehouse_id")
		args["to_warehouse_id"] = f.ToWarehouseID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.Priority != "" {
		conditions = append(conditions, "priority = :priority")
		args["priority"] = f.Priority
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_transfers" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_transfers" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &transfers, args)
	return transfers, count, err
}

func (r *PGRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	query := `SELECT count(*) FROM stock_transfers WHERE transfer_number LIKE $1`
	err := r.DB.GetContext(ctx, &count, query, prefix+"%")
	return count, err
}

func (r *PGRepository) LinesByTransfer(ctx context.Context, transferID string) ([]model.TransferLine, error) {
	var lines []model.TransferLine
	query := `SELECT * FROM transfer_lines WHERE transfer_id = $1 ORDER BY id ASC`
	err := r.DB.SelectContext(ctx, &lines, query, transferID)
	return lines, err
}
