package adjustment

import (
	"context"

	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type Repository interface {
	// Create writes the adjustment and its lines in one transaction.
	Create(ctx context.Context, adjustment *model.StockAdjustment, lines []model.AdjustmentLine) error
	Update(ctx context.Context, adjustment *model.StockAdjustment) error
	// UpdateLines rewrites line quantities with the values observed when the
	// adjustment was applied.
	UpdateLines(ctx context.Context, lines []model.AdjustmentLine) error
	FindByID(ctx context.Context, id string) (*model.StockAdjustment, error)
	FindByNumber(ctx context.Context, number string) (*model.StockAdjustment, error)
	FindAll(ctx context.Context, filters *dto.AdjustmentFilters) ([]model.StockAdjustment, int, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int, error)
	LinesByAdjustment(ctx context.Context, adjustmentID string) ([]model.AdjustmentLine, error)
}
