package capacity

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/capacity/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type Repository interface {
	GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error)
	GetLocation(ctx context.Context, id string) (*model.StorageLocation, error)
	FindLocations(ctx context.Context, filters *dto.LocationFilters) ([]model.StorageLocation, int, error)
	// CandidateLocations returns active, non-full locations of a warehouse
	// ordered tightest remaining volume first.
	CandidateLocations(ctx context.Context, warehouseID string) ([]model.StorageLocation, error)

	// ApplyOccupancy moves a location's volume and weight counters by the
	// given deltas and mirrors the volume delta onto the warehouse total,
	// both under row locks in one transaction. Counters clamp at zero on
	// the way down. With enforce set, a delta that would overrun the
	// location's limits fails with ErrCapacityExceeded instead.
	ApplyOccupancy(ctx context.Context, locationID string, volumeDelta, weightDelta decimal.Decimal, enforce bool) (*model.StorageLocation, error)
}
