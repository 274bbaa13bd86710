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
	"github.com/wareflow/inventory-service/internal/reservation/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertReservationQuery = `
    INSERT INTO reservations (
        id, reservation_number, product_id, warehouse_id,
        quantity, backorder_quantity, status, order_id, customer_id,
        expires_at, reserved_at, allocated_at, released_at, notes,
        created_at, updated_at
    )
    VALUES (
        :id, :reservation_number, :product_id, :warehouse_id,
        :quantity, :backorder_quantity, :status, :order_id, :customer_id,
        :expires_at, :reserved_at, :allocated_at, :released_at, :notes,
        :created_at, :updated_at
    )
`

const insertLineQuery = `
    INSERT INTO allocation_lines (id, reservation_id, lot_id, quantity, created_at)
    VALUES (:id, :reservation_id, :lot_id, :quantity, :created_at)
`

func (r *PGRepository) Create(ctx context.Context, reservation *model.Reservation, lines []model.AllocationLine) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertReservationQuery, reservation); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	for i := range lines {
		if _, err := tx.NamedExecContext(ctx, insertLineQuery, &lines[i]); err != nil {
			return fmt.Errorf("failed to insert allocation line: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	reservation.UpdatedAt = time.Now()
	query := `
        UPDATE reservations
        SET status = :status,
            backorder_quantity = :backorder_quantity,
            expires_at = :expires_at,
            allocated_at = :allocated_at,
            released_at = :released_at,
            notes = :notes,
            updated_at = :updated_at
        WHERE id = :id
    `
	result, err := r.DB.NamedExecContext(ctx, query, reservation)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("reservation %s not found", reservation.ID)
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	var reservation model.Reservation
	query := `SELECT * FROM reservations WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &reservation, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *PGRepository) FindByNumber(ctx context.Context, number string) (*model.Reservation, error) {
	var reservation model.Reservation
	query := `SELECT * FROM reservations WHERE reservation_number = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &reservation, query, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	var reservations []model.Reservation
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.OrderID != "" {
		conditions = append(conditions, "order_id = :order_id")
		args["order_id"] = f.OrderID
	}
	if f.CustomerID != "" {
		conditions = append(conditions, "customer_id = :customer_id")
		args["customer_id"] = f.CustomerID
	}
	if f.ExpiringBefore != nil {
		conditions = append(conditions, "expires_at <= :expiring_before")
		args["expiring_before"] = *f.ExpiringBefore
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM reservations" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM reservations" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &reservations, args)
	return reservations, count, err
}

func (r *PGRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	holding := []string{model.ReservationStatusReserved, model.ReservationStatusPartiallyReserved}
	query, args, err := sqlx.In(`
        SELECT * FROM reservations
        WHERE status IN (?) AND expires_at < ?
        ORDER BY expires_at ASC
        LIMIT ?
    `, holding, now, limit)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var reservations []model.Reservation
	err = r.DB.SelectContext(ctx, &reservations, query, args...)
	return reservations, err
}

func (r *PGRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	query := `SELECT count(*) FROM reservations WHERE reservation_number LIKE $1`
	err := r.DB.GetContext(ctx, &count, query, prefix+"%")
	return count, err
}

func (r *PGRepository) LinesByReservation(ctx context.Context, reservationID string) ([]model.AllocationLine, error) {
	var lines []model.AllocationLine
	query := `SELECT * FROM allocation_lines WHERE reservation_id = $1 ORDER BY created_at ASC, id ASC`
	err := r.DB.SelectContext(ctx, &lines, query, reservationID)
	return lines, err
}

func (r *PGRepository) DeleteLines(ctx context.Context, reservationID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM allocation_lines WHERE reservation_id = $1`, reservationID)
	return err
}
