package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/wareflow/inventory-service/internal/ledger"
	"github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertLotQuery = `
    INSERT INTO stock_lots (
        id, product_id, warehouse_id, location_id, batch_number,
        on_hand_quantity, reserved_quantity, available_quantity,
        unit_cost, total_value, manufacturing_date, expiry_date,
        status, created_at, updated_at
    )
    VALUES (
        :id, :product_id, :warehouse_id, :location_id, :batch_number,
        :on_hand_quantity, :reserved_quantity, :available_quantity,
        :unit_cost, :total_value, :manufacturing_date, :expiry_date,
        :status, :created_at, :updated_at
    )
`

const updateLotQuery = `
    UPDATE stock_lots
    SET on_hand_quantity = :on_hand_quantity,
        reserved_quantity = :reserved_quantity,
        available_quantity = :available_quantity,
        total_value = :total_value,
        status = :status,
        updated_at = :updated_at
    WHERE id = :id
`

const insertMovementQuery = `
    INSERT INTO stock_movements (
        id, lot_id, product_id, warehouse_id,
        movement_type, quantity_change, quantity_before, quantity_after,
        reference_type, reference_id, notes, created_by, created_at
    )
    VALUES (
        :id, :lot_id, :product_id, :warehouse_id,
        :movement_type, :quantity_change, :quantity_before, :quantity_after,
        :reference_type, :reference_id, :notes, :created_by, :created_at
    )
`

func (r *PGRepository) GetLot(ctx context.Context, id string) (*model.StockLot, error) {
	var lot model.StockLot
	query := `SELECT * FROM stock_lots WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &lot, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}

func (r *PGRepository) FindLots(ctx context.Context, f *dto.LotFilters) ([]model.StockLot, int, error) {
	var lots []model.StockLot
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
	if f.LocationID != "" {
		conditions = append(conditions, "location_id = :location_id")
		args["location_id"] = f.LocationID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.BatchNumber != "" {
		conditions = append(conditions, "batch_number = :batch_number")
		args["batch_number"] = f.BatchNumber
	}
	if f.LowStockAt != nil {
		conditions = append(conditions, "available_quantity <= :low_stock_at")
		args["low_stock_at"] = *f.LowStockAt
	}
	if f.ExpiringBefore != nil {
		conditions = append(conditions, "expiry_date IS NOT NULL AND expiry_date <= :expiring_before")
		args["expiring_before"] = *f.ExpiringBefore
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_lots" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_lots" + whereClause + " ORDER BY updated_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &lots, args)
	return lots, count, err
}

func (r *PGRepository) AvailableLots(ctx context.Context, productID string, warehouseID *string) ([]model.StockLot, error) {
	query := `
        SELECT * FROM stock_lots
        WHERE product_id = $1 AND status = 'active' AND available_quantity > 0
    `
	args := []interface{}{productID}

	if warehouseID != nil && *warehouseID != "" {
		query += ` AND warehouse_id = $2`
		args = append(args, *warehouseID)
	}

	query += ` ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`

	var lots []model.StockLot
	err := r.DB.SelectContext(ctx, &lots, query, args...)
	return lots, err
}

// lockLot reads a single lot under FOR UPDATE.
func (r *PGRepository) lockLot(ctx context.Context, tx *sqlx.Tx, id string) (*model.StockLot, error) {
	var lot model.StockLot
	err := tx.GetContext(ctx, &lot, `SELECT * FROM stock_lots WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
		}
		return nil, err
	}
	return &lot, nil
}

// lockLots locks the given lots in ascending id order so concurrent batches
// touching the same lots cannot deadlock.
func (r *PGRepository) lockLots(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]*model.StockLot, error) {
	distinct := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}
	sort.Strings(distinct)

	query, args, err := sqlx.In(`SELECT * FROM stock_lots WHERE id IN (?) ORDER BY id FOR UPDATE`, distinct)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var lots []model.StockLot
	if err := tx.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, err
	}

	byID := make(map[string]*model.StockLot, len(lots))
	for i := range lots {
		byID[lots[i].ID] = &lots[i]
	}
	for _, id := range distinct {
		if byID[id] == nil {
			return nil, fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
		}
	}
	return byID, nil
}

func (r *PGRepository) updateLotTx(ctx context.Context, tx *sqlx.Tx, lot *model.StockLot) error {
	lot.Recalculate()
	lot.UpdatedAt = time.Now()
	_, err := tx.NamedExecContext(ctx, updateLotQuery, lot)
	if err != nil {
		return fmt.Errorf("failed to update lot %s: %w", lot.ID, err)
	}
	return nil
}

func (r *PGRepository) insertMovementTx(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	_, err := tx.NamedExecContext(ctx, insertMovementQuery, m)
	if err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

// completeMovement fills the identity and before/after columns the caller
// could not know before the row lock was held.
func completeMovement(m *model.StockMovement, lot *model.StockLot, before, after int64) {
	m.LotID = lot.ID
	m.ProductID = lot.ProductID
	m.WarehouseID = lot.WarehouseID
	m.QuantityBefore = before
	m.QuantityAfter = after
}

func (r *PGRepository) Reserve(ctx context.Context, op dto.StockOperation) (*model.StockLot, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lot, err := r.lockLot(ctx, tx, op.LotID)
	if err != nil {
		return nil, err
	}

	if lot.Status != model.LotStatusActive {
		return nil, fmt.Errorf("lot %s is %s: %w", lot.ID, lot.Status, ledger.ErrInsufficientStock)
	}
	if op.Quantity > lot.AvailableQuantity {
		return nil, fmt.Errorf("lot %s has %d available, want %d: %w",
			lot.ID, lot.AvailableQuantity, op.Quantity, ledger.ErrInsufficientStock)
	}

	before := lot.ReservedQuantity
	lot.ReservedQuantity += op.Quantity
	if err := r.updateLotTx(ctx, tx, lot); err != nil {
		return nil, err
	}

	completeMovement(op.Movement, lot, before, lot.ReservedQuantity)
	if err := r.insertMovementTx(ctx, tx, op.Movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lot, nil
}

func (r *PGRepository) ReleaseBatch(ctx context.Context, ops []dto.StockOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	lots, err := r.lockLots(ctx, tx, ids)
	if err != nil {
		return err
	}

	for _, op := range ops {
		lot := lots[op.LotID]
		if op.Quantity > lot.ReservedQuantity {
			return fmt.Errorf("lot %s has %d reserved, want to release %d: %w",
				lot.ID, lot.ReservedQuantity, op.Quantity, ledger.ErrInvalidReleaseQuantity)
		}

		before := lot.ReservedQuantity
		lot.ReservedQuantity -= op.Quantity
		if err := r.updateLotTx(ctx, tx, lot); err != nil {
			return err
		}

		completeMovement(op.Movement, lot, before, lot.ReservedQuantity)
		if err := r.insertMovementTx(ctx, tx, op.Movement); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) CommitBatch(ctx context.Context, ops []dto.StockOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	lots, err := r.lockLots(ctx, tx, ids)
	if err != nil {
		return err
	}

	for _, op := range ops {
		lot := lots[op.LotID]
		if op.Quantity > lot.ReservedQuantity || op.Quantity > lot.OnHandQuantity {
			return fmt.Errorf("lot %s has %d reserved / %d on hand, want to commit %d: %w",
				lot.ID, lot.ReservedQuantity, lot.OnHandQuantity, op.Quantity, ledger.ErrInvalidCommitQuantity)
		}

		before := lot.OnHandQuantity
		lot.OnHandQuantity -= op.Quantity
		lot.ReservedQuantity -= op.Quantity
		if err := r.updateLotTx(ctx, tx, lot); err != nil {
			return err
		}

		completeMovement(op.Movement, lot, before, lot.OnHandQuantity)
		if err := r.insertMovementTx(ctx, tx, op.Movement); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Receive upserts the (product, warehouse, batch) lot. An existing lot gains
// on-hand quantity and keeps its own cost, location and dates; otherwise the
// candidate row is inserted as given.
func (r *PGRepository) Receive(ctx context.Context, candidate *model.StockLot, qty int64, movement *model.StockMovement) (*model.StockLot, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `SELECT * FROM stock_lots WHERE product_id = $1 AND warehouse_id = $2`
	args := []interface{}{candidate.ProductID, candidate.WarehouseID}
	if candidate.BatchNumber != nil && *candidate.BatchNumber != "" {
		query += ` AND batch_number = $3`
		args = append(args, *candidate.BatchNumber)
	} else {
		query += ` AND batch_number IS NULL`
	}
	query += ` FOR UPDATE`

	var existing model.StockLot
	err = tx.GetContext(ctx, &existing, query, args...)
	switch {
	case err == nil:
		before := existing.OnHandQuantity
		existing.OnHandQuantity += qty
		if err := r.updateLotTx(ctx, tx, &existing); err != nil {
			return nil, err
		}
		completeMovement(movement, &existing, before, existing.OnHandQuantity)
		if err := r.insertMovementTx(ctx, tx, movement); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &existing, nil

	case errors.Is(err, sql.ErrNoRows):
		candidate.OnHandQuantity = qty
		candidate.Recalculate()
		if _, err := tx.NamedExecContext(ctx, insertLotQuery, candidate); err != nil {
			return nil, fmt.Errorf("failed to insert lot: %w", err)
		}
		completeMovement(movement, candidate, 0, qty)
		if err := r.insertMovementTx(ctx, tx, movement); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return candidate, nil

	default:
		return nil, err
	}
}

func (r *PGRepository) AdjustBatch(ctx context.Context, ops []dto.AdjustOperation) ([]model.StockLot, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	lots, err := r.lockLots(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	updated := make([]model.StockLot, 0, len(ops))
	for _, op := range ops {
		lot := lots[op.LotID]
		if lot.OnHandQuantity+op.QuantityChange < 0 {
			return nil, fmt.Errorf("lot %s has %d on hand, change %d: %w",
				lot.ID, lot.OnHandQuantity, op.QuantityChange, ledger.ErrNegativeStock)
		}

		before := lot.OnHandQuantity
		lot.OnHandQuantity += op.QuantityChange
		if op.NewStatus != "" {
			lot.Status = op.NewStatus
		}
		if err := r.updateLotTx(ctx, tx, lot); err != nil {
			return nil, err
		}

		completeMovement(op.Movement, lot, before, lot.OnHandQuantity)
		if err := r.insertMovementTx(ctx, tx, op.Movement); err != nil {
			return nil, err
		}
		updated = append(updated, *lot)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// TransferBatch moves every line or none. Source rows are locked in ascending
// id order before any destination upsert takes its lock.
func (r *PGRepository) TransferBatch(ctx context.Context, destWarehouseID string, ops []dto.TransferLineOperation) ([]model.StockLot, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.SourceLotID
	}
	sources, err := r.lockLots(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	dests := make([]model.StockLot, 0, len(ops))
	for _, op := range ops {
		src := sources[op.SourceLotID]
		// Reserved stock stays behind; only free quantity moves.
		if op.Quantity > src.AvailableQuantity {
			return nil, fmt.Errorf("lot %s has %d available, want to transfer %d: %w",
				src.ID, src.AvailableQuantity, op.Quantity, ledger.ErrInsufficientStock)
		}

		beforeOut := src.OnHandQuantity
		src.OnHandQuantity -= op.Quantity
		if err := r.updateLotTx(ctx, tx, src); err != nil {
			return nil, err
		}
		completeMovement(op.OutMovement, src, beforeOut, src.OnHandQuantity)
		if err := r.insertMovementTx(ctx, tx, op.OutMovement); err != nil {
			return nil, err
		}

		dest, err := r.receiveIntoTx(ctx, tx, src, destWarehouseID, op.Quantity)
		if err != nil {
			return nil, err
		}
		completeMovement(op.InMovement, dest, dest.OnHandQuantity-op.Quantity, dest.OnHandQuantity)
		if err := r.insertMovementTx(ctx, tx, op.InMovement); err != nil {
			return nil, err
		}
		dests = append(dests, *dest)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return dests, nil
}

// receiveIntoTx upserts the destination lot for a transfer line, carrying
// batch identity, cost and dates from the source lot.
func (r *PGRepository) receiveIntoTx(ctx context.Context, tx *sqlx.Tx, src *model.StockLot, destWarehouseID string, qty int64) (*model.StockLot, error) {
	query := `SELECT * FROM stock_lots WHERE product_id = $1 AND warehouse_id = $2`
	args := []interface{}{src.ProductID, destWarehouseID}
	if src.BatchNumber != nil && *src.BatchNumber != "" {
		query += ` AND batch_number = $3`
		args = append(args, *src.BatchNumber)
	} else {
		query += ` AND batch_number IS NULL`
	}
	query += ` FOR UPDATE`

	var dest model.StockLot
	err := tx.GetContext(ctx, &dest, query, args...)
	switch {
	case err == nil:
		dest.OnHandQuantity += qty
		if err := r.updateLotTx(ctx, tx, &dest); err != nil {
			return nil, err
		}
		return &dest, nil

	case errors.Is(err, sql.ErrNoRows):
		now := time.Now()
		dest = model.StockLot{
			BaseModel: model.BaseModel{
				ID:        uuid.New().String(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			ProductID:         src.ProductID,
			WarehouseID:       destWarehouseID,
			BatchNumber:       src.BatchNumber,
			OnHandQuantity:    qty,
			UnitCost:          src.UnitCost,
			ManufacturingDate: src.ManufacturingDate,
			ExpiryDate:        src.ExpiryDate,
			Status:            model.LotStatusActive,
		}
		dest.Recalculate()
		if _, err := tx.NamedExecContext(ctx, insertLotQuery, &dest); err != nil {
			return nil, fmt.Errorf("failed to insert destination lot: %w", err)
		}
		return &dest, nil

	default:
		return nil, err
	}
}

func (r *PGRepository) SetLotLocation(ctx context.Context, lotID string, locationID *string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE stock_lots SET location_id = $1, updated_at = $2 WHERE id = $3`,
		locationID, time.Now(), lotID,
	)
	return err
}

func (r *PGRepository) MarkExpiredLots(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE stock_lots
        SET status = $1, updated_at = $2
        WHERE status = $3 AND expiry_date IS NOT NULL AND expiry_date < $2
    `, model.LotStatusExpired, now, model.LotStatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepository) LogMovement(ctx context.Context, m *model.StockMovement) error {
	_, err := r.DB.NamedExecContext(ctx, insertMovementQuery, m)
	return err
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.LotID != "" {
		conditions = append(conditions, "lot_id = :lot_id")
		args["lot_id"] = f.LotID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) Summary(ctx context.Context, f *dto.SummaryFilters) (*dto.StockSummary, error) {
	conditions := []string{}
	args := []interface{}{}

	if f.WarehouseID != "" {
		args = append(args, f.WarehouseID)
		conditions = append(conditions, fmt.Sprintf("warehouse_id = $%d", len(args)))
	}
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `
        SELECT count(*) AS total_lots,
               COALESCE(SUM(on_hand_quantity), 0) AS total_on_hand,
               COALESCE(SUM(reserved_quantity), 0) AS total_reserved,
               COALESCE(SUM(available_quantity), 0) AS total_available,
               COALESCE(SUM(total_value), 0) AS total_value,
               count(*) FILTER (WHERE status = 'expired') AS expired_lots
        FROM stock_lots` + whereClause

	var summary dto.StockSummary
	if err := r.DB.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, err
	}
	return &summary, nil
}
