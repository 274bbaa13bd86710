package transfer

import (
	"context"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
)

// UseCase runs the inter-warehouse move workflow: transfers are drafted
// against source lots, approved, and applied as one atomic stock move.
type UseCase interface {
	Create(ctx context.Context, input *dto.CreateTransferInput) (*model.StockTransfer, error)
	Approve(ctx context.Context, id string) (*model.StockTransfer, error)
	Cancel(ctx context.Context, id string) (*model.StockTransfer, error)
	// Apply moves every line's stock into the destination warehouse, all or
	// nothing, then puts the arriving lots away.
	Apply(ctx context.Context, id string) (*model.StockTransfer, error)

	Get(ctx context.Context, id string) (*model.StockTransfer, error)
	Find(ctx context.Context, filters *dto.TransferFilters) ([]model.StockTransfer, int, error)
}
