package ledger

import (
	"context"

	"github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type UseCase interface {
	// Reserve places a hold on a single lot. Fails with ErrInsufficientStock
	// when qty exceeds the lot's available quantity.
	Reserve(ctx context.Context, lotID string, qty int64, ref dto.MovementRef) (*model.StockLot, error)
	// Release returns reserved quantity to available stock.
	Release(ctx context.Context, lotID string, qty int64, ref dto.MovementRef) error
	// ReleaseLines releases every line or none.
	ReleaseLines(ctx context.Context, lines []dto.LineQuantity, ref dto.MovementRef) error
	// CommitLines converts holds into permanent stock removal, all lines or
	// none. The only operation that takes stock off the books.
	CommitLines(ctx context.Context, lines []dto.LineQuantity, ref dto.MovementRef) error

	Receive(ctx context.Context, input *dto.ReceiveInput) (*model.StockLot, error)
	Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockLot, error)
	AdjustLines(ctx context.Context, inputs []dto.AdjustInput, ref dto.MovementRef) ([]model.StockLot, error)
	// TransferLines moves each line's quantity out of its source lot and into
	// the destination warehouse in one atomic unit, preserving batch and cost.
	// Returns the destination lots, index-aligned with lines.
	TransferLines(ctx context.Context, destWarehouseID string, lines []dto.LineQuantity, ref dto.MovementRef) ([]model.StockLot, error)
	// PutAway places or re-places a lot into a storage location, moving its
	// occupancy with it. A nil locationID auto-selects the best fit; no fit
	// leaves the placement unchanged.
	PutAway(ctx context.Context, lotID string, locationID *string) (*model.StockLot, error)

	MarkExpiredLots(ctx context.Context) (int64, error)

	GetLot(ctx context.Context, id string) (*model.StockLot, error)
	FindLots(ctx context.Context, filters *dto.LotFilters) ([]model.StockLot, int, error)
	AvailableLots(ctx context.Context, productID string, warehouseID *string) ([]model.StockLot, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	ListLowStock(ctx context.Context, threshold int64, warehouseID string, page, pageSize int) ([]model.StockLot, int, error)
	Summary(ctx context.Context, filters *dto.SummaryFilters) (*dto.StockSummary, error)
}
