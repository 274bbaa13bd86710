package capacity

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/capacity/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

// Enforcement modes. Soft logs overruns and lets them through; hard rejects
// them with ErrCapacityExceeded.
const (
	EnforcementSoft = "soft"
	EnforcementHard = "hard"
)

type UseCase interface {
	// CanPlace reports whether a load fits the location right now. In soft
	// mode an overrun is logged and allowed.
	CanPlace(ctx context.Context, locationID string, volume, weight decimal.Decimal) error
	// FindBestLocation picks the location for a new load: the first
	// preferred location that fits, otherwise the tightest fit among the
	// warehouse's open locations. Returns nil when nothing fits.
	FindBestLocation(ctx context.Context, warehouseID string, volume, weight decimal.Decimal, preferred []string) (*model.StorageLocation, error)

	OnStockPlaced(ctx context.Context, locationID string, volume, weight decimal.Decimal) error
	OnStockRemoved(ctx context.Context, locationID string, volume, weight decimal.Decimal) error

	GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error)
	FindLocations(ctx context.Context, filters *dto.LocationFilters) ([]model.StorageLocation, int, error)
	WarehouseOccupancy(ctx context.Context, warehouseID string) (*dto.WarehouseOccupancy, error)
	LocationOccupancy(ctx context.Context, locationID string) (*dto.LocationOccupancy, error)
}
