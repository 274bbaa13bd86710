package adjustment

import (
	"context"

	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

// UseCase runs the count-correction workflow: adjustments are drafted,
// reviewed, and only then applied to the ledger.
type UseCase interface {
	Create(ctx context.Context, input *dto.CreateAdjustmentInput) (*model.StockAdjustment, error)
	Approve(ctx context.Context, id string) (*model.StockAdjustment, error)
	Reject(ctx context.Context, id string) (*model.StockAdjustment, error)
	// Apply pushes an approved adjustment into the ledger, every line or
	// none, and marks it completed.
	Apply(ctx context.Context, id string) (*model.StockAdjustment, error)

	Get(ctx context.Context, id string) (*model.StockAdjustment, error)
	Find(ctx context.Context, filters *dto.AdjustmentFilters) ([]model.StockAdjustment, int, error)
}
