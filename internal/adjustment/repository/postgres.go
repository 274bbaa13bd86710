package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertAdjustmentQuery = `
    INSERT INTO stock_adjustments (
        id, adjustment_number, warehouse_id, adjustment_type, status, reason,
        created_by, reviewed_by, reviewed_at, applied_at, created_at, updated_at
    )
    VALUES (
        :id, :adjustment_number, :warehouse_id, :adjustment_type, :status, :reason,
        :created_by, :reviewed_by, :reviewed_at, :applied_at, :created_at, :updated_at
    )
`

const insertAdjustmentLineQuery = `
    INSERT INTO adjustment_lines (
        id, adjustment_id, lot_id, quantity_before, quantity_change,
        quantity_after, unit_cost, value_change, reason, notes
    )
    VALUES (
        :id, :adjustment_id, :lot_id, :quantity_before, :quantity_change,
        :quantity_after, :unit_cost, :value_change, :reason, :notes
    )
`

func (r *PGRepository) Create(ctx context.Context, adjustment *model.StockAdjustment, lines []model.AdjustmentLine) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertAdjustmentQuery, adjustment); err != nil {
		return fmt.Errorf("failed to insert adjustment: %w", err)
	}
	for i := range lines {
		if _, err := tx.NamedExecContext(ctx, insertAdjustmentLineQuery, &lines[i]); err != nil {
			return fmt.Errorf("failed to insert adjustment line: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, adjustment *model.StockAdjustment) error {
	adjustment.UpdatedAt = time.Now()
	query := `
        UPDATE stock_adjustments
        SET status = :status,
            reviewed_by = :reviewed_by,
            reviewed_at = :reviewed_at,
            applied_at = :applied_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	result, err := r.DB.NamedExecContext(ctx, query, adjustment)
	if err != nil {
		return fmt.Errorf("failed to update adjustment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("adjustment %s not found", adjustment.ID)
	}
	return nil
}

func (r *PGRepository) UpdateLines(ctx context.Context, lines []model.AdjustmentLine) error {
	query := `
        UPDATE adjustment_lines
        SET quantity_before = :quantity_before,
            quantity_after = :quantity_after,
            value_change = :value_change
        WHERE id = :id
    `
	for i := range lines {
		if _, err := r.DB.NamedExecContext(ctx, query, &lines[i]); err != nil {
			return fmt.Errorf("failed to update adjustment line %s: %w", lines[i].ID, err)
		}
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.StockAdjustment, error) {
	var adjustment model.StockAdjustment
	query := `SELECT * FROM stock_adjustments WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &adjustment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &adjustment, nil
}

func (r *PGRepository) FindByNumber(ctx context.Context, number string) (*model.StockAdjustment, error) {
	var adjustment model.StockAdjustment
	query := `SELECT * FROM stock_adjustments WHERE adjustment_number = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &adjustment, query, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &adjustment, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.AdjustmentFilters) ([]model.StockAdjustment, int, error) {
	var adjustments []model.StockAdjustment
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.AdjustmentType != "" {
		conditions = append(conditions, "adjustment_type = :adjustment_type")
		args["adjustment_type"] = f.AdjustmentType
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_adjustments" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_adjustments" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &adjustments, args)
	return adjustments, count, err
}

func (r *PGRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	query := `SELECT count(*) FROM stock_adjustments WHERE adjustment_number LIKE $1`
	err := r.DB.GetContext(ctx, &count, query, prefix+"%")
	return count, err
}

func (r *PGRepository) LinesByAdjustment(ctx context.Context, adjustmentID string) ([]model.AdjustmentLine, error) {
	var lines []model.AdjustmentLine
	query := `SELECT * FROM adjustment_lines WHERE adjustment_id = $1 ORDER BY id ASC`
	err := r.DB.SelectContext(ctx, &lines, query, adjustmentID)
	return lines, err
}
