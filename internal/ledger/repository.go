package ledger

import (
	"context"
	"time"

	"github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

// Repository is the single writer of stock lots. Every mutating method is
// atomic: the lot update and its movement row apply together or not at all,
// with quantity invariants checked under the row lock.
type Repository interface {
	GetLot(ctx context.Context, id string) (*model.StockLot, error)
	FindLots(ctx context.Context, filters *dto.LotFilters) ([]model.StockLot, int, error)
	// AvailableLots returns active lots with available stock, ordered
	// first-expired-first-out: earliest expiry first, undated lots last,
	// ties broken by creation time then id.
	AvailableLots(ctx context.Context, productID string, warehouseID *string) ([]model.StockLot, error)

	Reserve(ctx context.Context, op dto.StockOperation) (*model.StockLot, error)
	ReleaseBatch(ctx context.Context, ops []dto.StockOperation) error
	CommitBatch(ctx context.Context, ops []dto.StockOperation) error

	Receive(ctx context.Context, lot *model.StockLot, qty int64, movement *model.StockMovement) (*model.StockLot, error)
	AdjustBatch(ctx context.Context, ops []dto.AdjustOperation) ([]model.StockLot, error)
	// TransferBatch returns the destination lots, index-aligned with ops.
	TransferBatch(ctx context.Context, destWarehouseID string, ops []dto.TransferLineOperation) ([]model.StockLot, error)

	SetLotLocation(ctx context.Context, lotID string, locationID *string) error
	MarkExpiredLots(ctx context.Context, now time.Time) (int64, error)

	LogMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	Summary(ctx context.Context, filters *dto.SummaryFilters) (*dto.StockSummary, error)
}
