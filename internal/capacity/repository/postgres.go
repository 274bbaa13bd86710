package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/capacity/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error) {
	var wh model.Warehouse
	query := `SELECT * FROM warehouses WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &wh, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &wh, nil
}

func (r *PGRepository) GetLocation(ctx context.Context, id string) (*model.StorageLocation, error) {
	var loc model.StorageLocation
	query := `SELECT * FROM storage_locations WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &loc, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &loc, nil
}

func (r *PGRepository) FindLocations(ctx context.Context, f *dto.LocationFilters) ([]model.StorageLocation, int, error) {
	var locations []model.StorageLocation
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.LocationType != "" {
		conditions = append(conditions, "location_type = :location_type")
		args["location_type"] = f.LocationType
	}
	if f.IsActive != nil {
		conditions = append(conditions, "is_active = :is_active")
		args["is_active"] = *f.IsActive
	}
	if f.OnlyAvailable {
		conditions = append(conditions, "is_full = false")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM storage_locations" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM storage_locations" + whereClause + " ORDER BY code ASC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &locations, args)
	return locations, count, err
}

func (r *PGRepository) CandidateLocations(ctx context.Context, warehouseID string) ([]model.StorageLocation, error) {
	var locations []model.StorageLocation
	query := `
        SELECT * FROM storage_locations
        WHERE warehouse_id = $1 AND is_active = true AND is_full = false
        ORDER BY (max_volume - current_volume) ASC, code ASC
    `
	err := r.DB.SelectContext(ctx, &locations, query, warehouseID)
	return locations, err
}

func (r *PGRepository) ApplyOccupancy(ctx context.Context, locationID string, volumeDelta, weightDelta decimal.Decimal, enforce bool) (*model.StorageLocation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var loc model.StorageLocation
	err = tx.GetContext(ctx, &loc, `SELECT * FROM storage_locations WHERE id = $1 FOR UPDATE`, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location %s: %w", locationID, capacity.ErrLocationNotFound)
		}
		return nil, err
	}

	newVolume := loc.CurrentVolume.Add(volumeDelta)
	newWeight := loc.CurrentWeight.Add(weightDelta)
	if enforce && (newVolume.GreaterThan(loc.MaxVolume) || newWeight.GreaterThan(loc.MaxWeight)) {
		return nil, fmt.Errorf("location %s: %w", loc.Code, capacity.ErrCapacityExceeded)
	}
	if newVolume.IsNegative() {
		newVolume = decimal.Zero
	}
	if newWeight.IsNegative() {
		newWeight = decimal.Zero
	}

	loc.CurrentVolume = newVolume
	loc.CurrentWeight = newWeight
	loc.ComputeFull()
	loc.UpdatedAt = time.Now()

	_, err = tx.NamedExecContext(ctx, `
        UPDATE storage_locations
        SET current_volume = :current_volume,
            current_weight = :current_weight,
            is_full = :is_full,
            updated_at = :updated_at
        WHERE id = :id
    `, &loc)
	if err != nil {
		return nil, fmt.Errorf("failed to update location %s: %w", loc.ID, err)
	}

	var wh model.Warehouse
	err = tx.GetContext(ctx, &wh, `SELECT * FROM warehouses WHERE id = $1 FOR UPDATE`, loc.WarehouseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("warehouse %s: %w", loc.WarehouseID, capacity.ErrWarehouseNotFound)
		}
		return nil, err
	}

	used := wh.UsedCapacity.Add(volumeDelta)
	if used.IsNegative() {
		used = decimal.Zero
	}
	wh.UsedCapacity = used
	wh.UpdatedAt = time.Now()

	_, err = tx.NamedExecContext(ctx, `
        UPDATE warehouses
        SET used_capacity = :used_capacity, updated_at = :updated_at
        WHERE id = :id
    `, &wh)
	if err != nil {
		return nil, fmt.Errorf("failed to update warehouse %s: %w", wh.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &loc, nil
}
