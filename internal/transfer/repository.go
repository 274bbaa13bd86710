package transfer

import (
	"context"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
)

type Repository interface {
	// Create writes the transfer and its lines in one transaction.
	Create(ctx context.Context, transfer *model.StockTransfer, lines []model.TransferLine) error
	Update(ctx context.Context, transfer *model.StockTransfer) error
	UpdateLines(ctx context.Context, lines []model.TransferLine) error
	FindByID(ctx context.Context, id string) (*model.StockTransfer, error)
	FindByNumber(ctx context.Context, number string) (*model.StockTransfer, error)
	FindAll(ctx context.Context, filters *dto.TransferFilters) ([]model.StockTransfer, int, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int, error)
	LinesByTransfer(ctx context.Context, transferID string) ([]model.TransferLine, error)
}
