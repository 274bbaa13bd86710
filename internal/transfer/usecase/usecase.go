package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wareflow/inventory-service/internal/auth"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/catalog"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	ledgerdto "github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/transfer"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
)

const (
	refType      = "transfer"
	numberPrefix = "TR"
)

type transferUseCase struct {
	logger    logger.ZapLogger
	repo      transfer.Repository
	ledger    ledger.UseCase
	catalog   catalog.Repository
	capacity  capacity.UseCase
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewTransferUseCase(
	log logger.ZapLogger,
	repo transfer.Repository,
	ledgerUC ledger.UseCase,
	catalogRepo catalog.Repository,
	capacityUC capacity.UseCase,
	publisher events.Publisher,
) transfer.UseCase {
	return &transferUseCase{
		logger:    log,
		repo:      repo,
		ledger:    ledgerUC,
		catalog:   catalogRepo,
		capacity:  capacityUC,
		publisher: publisher,
		tracer:    otel.Tracer("inventory.transfer"),
	}
}

func (u *transferUseCase) Create(ctx context.Context, input *dto.CreateTransferInput) (*model.StockTransfer, error) {
	ctx, span := u.tracer.Start(ctx, "transfer.Create", trace.WithAttributes(
		attribute.String("from_warehouse_id", input.FromWarehouseID),
		attribute.String("to_warehouse_id", input.ToWarehouseID),
		attribute.Int("lines", len(input.Lines)),
	))
	defer span.End()

	if input.FromWarehouseID == input.ToWarehouseID {
		return nil, transfer.ErrSameWarehouse
	}
	if len(input.Lines) == 0 {
		return nil, transfer.ErrNoLines
	}
	if _, err := u.capacity.GetWarehouse(ctx, input.FromWarehouseID); err != nil {
		return nil, err
	}
	if _, err := u.capacity.GetWarehouse(ctx, input.ToWarehouseID); err != nil {
		return nil, err
	}

	now := time.Now()
	transferID := uuid.New().String()

	lines := make([]model.TransferLine, 0, len(input.Lines))
	for _, lineInput := range input.Lines {
		if lineInput.Quantity <= 0 {
			return nil, fmt.Errorf("lot %s: %w", lineInput.SourceLotID, ledger.ErrInvalidQuantity)
		}

		lot, err := u.ledger.GetLot(ctx, lineInput.SourceLotID)
		if err != nil {
			return nil, err
		}
		if lot.WarehouseID != input.FromWarehouseID {
			return nil, fmt.Errorf("lot %s is in warehouse %s: %w",
				lot.ID, lot.WarehouseID, transfer.ErrLotNotInSource)
		}
		if lineInput.Quantity > lot.AvailableQuantity {
			return nil, fmt.Errorf("lot %s has %d available, want %d: %w",
				lot.ID, lot.AvailableQuantity, lineInput.Quantity, ledger.ErrInsufficientStock)
		}

		lines = append(lines, model.TransferLine{
			ID:          uuid.New().String(),
			TransferID:  transferID,
			ProductID:   lot.ProductID,
			SourceLotID: lot.ID,
			Quantity:    lineInput.Quantity,
			UnitCost:    lot.UnitCost,
			BatchNumber: lot.BatchNumber,
			Status:      model.TransferLineStatusPending,
		})
	}

	priority := input.Priority
	if priority == "" {
		priority = model.TransferPriorityNormal
	}

	number, err := u.nextNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	tr := &model.StockTransfer{
		BaseModel: model.BaseModel{
			ID:        transferID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		TransferNumber:  number,
		FromWarehouseID: input.FromWarehouseID,
		ToWarehouseID:   input.ToWarehouseID,
		Status:          model.TransferStatusPending,
		Priority:        priority,
		RequestedBy:     auth.StaffIDRef(ctx),
		Notes:           input.Notes,
	}
	if err := u.repo.Create(ctx, tr, lines); err != nil {
		return nil, err
	}
	tr.Lines = lines

	u.logger.Info("transfer drafted",
		zap.String("transfer_number", number),
		zap.String("from_warehouse_id", input.FromWarehouseID),
		zap.String("to_warehouse_id", input.ToWarehouseID),
		zap.Int("lines", len(lines)),
	)
	return tr, nil
}

func (u *transferUseCase) nextNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := numberPrefix + now.Format("20060102")
	count, err := u.repo.CountByNumberPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (u *transferUseCase) Approve(ctx context.Context, id string) (*model.StockTransfer, error) {
	tr, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("transfer %s: %w", id, transfer.ErrTransferNotFound)
	}
	if tr.Status != model.TransferStatusPending {
		return nil, fmt.Errorf("transfer %s is %s: %w", tr.TransferNumber, tr.Status, transfer.ErrNotPending)
	}

	now := time.Now()
	tr.Status = model.TransferStatusApproved
	tr.ApprovedBy = auth.StaffIDRef(ctx)
	tr.ApprovedAt = &now
	if err := u.repo.Update(ctx, tr); err != nil {
		return nil, err
	}

	u.logger.Info("transfer approved", zap.String("transfer_number", tr.TransferNumber))
	return tr, nil
}

func (u *transferUseCase) Cancel(ctx context.Context, id string) (*model.StockTransfer, error) {
	tr, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("transfer %s: %w", id, transfer.ErrTransferNotFound)
	}

	switch tr.Status {
	case model.TransferStatusCancelled:
		return tr, nil
	case model.TransferStatusCompleted:
		return nil, fmt.Errorf("transfer %s: %w", tr.TransferNumber, transfer.ErrAlreadyApplied)
	case model.TransferStatusPending, model.TransferStatusApproved:
	default:
		return nil, fmt.Errorf("transfer %s is %s: %w", tr.TransferNumber, tr.Status, transfer.ErrNotPending)
	}

	tr.Status = model.TransferStatusCancelled
	if err := u.repo.Update(ctx, tr); err != nil {
		return nil, err
	}

	u.logger.Info("transfer cancelled", zap.String("transfer_number", tr.TransferNumber))
	return tr, nil
}

func (u *transferUseCase) Apply(ctx context.Context, id string) (*model.StockTransfer, error) {
	ctx, span := u.tracer.Start(ctx, "transfer.Apply", trace.WithAttributes(
		attribute.String("transfer_id", id),
	))
	defer span.End()

	tr, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("transfer %s: %w", id, transfer.ErrTransferNotFound)
	}
	if tr.Status == model.TransferStatusCompleted {
		return nil, fmt.Errorf("transfer %s: %w", tr.TransferNumber, transfer.ErrAlreadyApplied)
	}
	if tr.Status != model.TransferStatusApproved {
		return nil, fmt.Errorf("transfer %s is %s: %w", tr.TransferNumber, tr.Status, transfer.ErrNotApproved)
	}

	lines, err := u.repo.LinesByTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("transfer %s: %w", tr.TransferNumber, transfer.ErrNoLines)
	}

	lineQty := make([]ledgerdto.LineQuantity, 0, len(lines))
	for _, line := range lines {
		lineQty = append(lineQty, ledgerdto.LineQuantity{LotID: line.SourceLotID, Quantity: line.Quantity})
	}
	ref := ledgerdto.MovementRef{Type: refType, ID: tr.ID, Notes: tr.Notes}

	dests, err := u.ledger.TransferLines(ctx, tr.ToWarehouseID, lineQty, ref)
	if err != nil {
		return nil, err
	}

	for i := range lines {
		lines[i].Status = model.TransferLineStatusReceived
	}
	if err := u.repo.UpdateLines(ctx, lines); err != nil {
		u.logger.Warn("failed to mark transfer lines received",
			zap.String("transfer_id", tr.ID), zap.Error(err))
	}

	now := time.Now()
	tr.Status = model.TransferStatusCompleted
	tr.ReceivedBy = auth.StaffIDRef(ctx)
	tr.CompletedAt = &now
	if err := u.repo.Update(ctx, tr); err != nil {
		// Stock already moved; this needs an operator, not a retry.
		u.logger.Error("stock moved but transfer not marked completed",
			zap.String("transfer_id", tr.ID),
			zap.Error(err),
		)
		return nil, err
	}
	tr.Lines = lines

	u.putAwayArrivals(ctx, dests, lines)

	u.publisher.Publish(ctx, events.TypeTransferCompleted, tr.ToWarehouseID, events.TransferPayload{
		TransferID:      tr.ID,
		TransferNumber:  tr.TransferNumber,
		FromWarehouseID: tr.FromWarehouseID,
		ToWarehouseID:   tr.ToWarehouseID,
		Status:          tr.Status,
	})
	u.logger.Info("transfer completed",
		zap.String("transfer_number", tr.TransferNumber),
		zap.Int("lines", len(lines)),
	)
	return tr, nil
}

// putAwayArrivals places arriving lots. New lots get a best-fit slot; lots
// merged into already placed stock just grow that location's occupancy.
func (u *transferUseCase) putAwayArrivals(ctx context.Context, dests []model.StockLot, lines []model.TransferLine) {
	products := map[string]*model.Product{}
	placed := map[string]bool{}

	for i, dest := range dests {
		if dest.LocationID == nil {
			if placed[dest.ID] {
				continue
			}
			placed[dest.ID] = true
			if _, err := u.ledger.PutAway(ctx, dest.ID, nil); err != nil {
				u.logger.Warn("arriving lot left unplaced",
					zap.String("lot_id", dest.ID), zap.Error(err))
			}
			continue
		}

		product, ok := products[dest.ProductID]
		if !ok {
			var err error
			product, err = u.catalog.FindByID(ctx, dest.ProductID)
			if err != nil || product == nil {
				continue
			}
			products[dest.ProductID] = product
		}

		qty := decimal.NewFromInt(lines[i].Quantity)
		err := u.capacity.OnStockPlaced(ctx, *dest.LocationID,
			product.UnitVolume().Mul(qty), product.UnitWeight().Mul(qty))
		if err != nil {
			u.logger.Warn("failed to grow destination occupancy",
				zap.String("lot_id", dest.ID),
				zap.String("location_id", *dest.LocationID),
				zap.Error(err),
			)
		}
	}
}

func (u *transferUseCase) Get(ctx context.Context, id string) (*model.StockTransfer, error) {
	tr, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("transfer %s: %w", id, transfer.ErrTransferNotFound)
	}
	lines, err := u.repo.LinesByTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	tr.Lines = lines
	return tr, nil
}

func (u *transferUseCase) Find(ctx context.Context, filters *dto.TransferFilters) ([]model.StockTransfer, int, error) {
	return u.repo.FindAll(ctx, filters)
}
