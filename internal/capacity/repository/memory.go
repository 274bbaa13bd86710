package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/capacity/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type MemoryRepository struct {
	mu         sync.Mutex
	warehouses map[string]*model.Warehouse
	locations  map[string]*model.StorageLocation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		warehouses: make(map[string]*model.Warehouse),
		locations:  make(map[string]*model.StorageLocation),
	}
}

func (r *MemoryRepository) SeedWarehouse(wh model.Warehouse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warehouses[wh.ID] = &wh
}

func (r *MemoryRepository) SeedLocation(loc model.StorageLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc.ComputeFull()
	r.locations[loc.ID] = &loc
}

func (r *MemoryRepository) GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wh, ok := r.warehouses[id]
	if !ok {
		return nil, nil
	}
	cp := *wh
	return &cp, nil
}

func (r *MemoryRepository) GetLocation(ctx context.Context, id string) (*model.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, ok := r.locations[id]
	if !ok {
		return nil, nil
	}
	cp := *loc
	return &cp, nil
}

func (r *MemoryRepository) FindLocations(ctx context.Context, f *dto.LocationFilters) ([]model.StorageLocation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StorageLocation, 0)
	for _, loc := range r.locations {
		if f.WarehouseID != "" && loc.WarehouseID != f.WarehouseID {
			continue
		}
		if f.LocationType != "" && loc.LocationType != f.LocationType {
			continue
		}
		if f.IsActive != nil && loc.IsActive != *f.IsActive {
			continue
		}
		if f.OnlyAvailable && loc.IsFull {
			continue
		}
		matched = append(matched, *loc)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Code < matched[j].Code
	})

	total := len(matched)
	if f.PageSize > 0 {
		start := (f.Page - 1) * f.PageSize
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *MemoryRepository) CandidateLocations(ctx context.Context, warehouseID string) ([]model.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StorageLocation, 0)
	for _, loc := range r.locations {
		if loc.WarehouseID != warehouseID || !loc.IsActive || loc.IsFull {
			continue
		}
		matched = append(matched, *loc)
	}

	sort.Slice(matched, func(i, j int) bool {
		ai := matched[i].AvailableVolume()
		aj := matched[j].AvailableVolume()
		if !ai.Equal(aj) {
			return ai.LessThan(aj)
		}
		return matched[i].Code < matched[j].Code
	})
	return matched, nil
}

func (r *MemoryRepository) ApplyOccupancy(ctx context.Context, locationID string, volumeDelta, weightDelta decimal.Decimal, enforce bool) (*model.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, ok := r.locations[locationID]
	if !ok {
		return nil, fmt.Errorf("location %s: %w", locationID, capacity.ErrLocationNotFound)
	}
	wh, ok := r.warehouses[loc.WarehouseID]
	if !ok {
		return nil, fmt.Errorf("warehouse %s: %w", loc.WarehouseID, capacity.ErrWarehouseNotFound)
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

	used := wh.UsedCapacity.Add(volumeDelta)
	if used.IsNegative() {
		used = decimal.Zero
	}
	wh.UsedCapacity = used
	wh.UpdatedAt = time.Now()

	cp := *loc
	return &cp, nil
}
