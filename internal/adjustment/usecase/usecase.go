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

	"github.com/wareflow/inventory-service/internal/adjustment"
	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/auth"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/catalog"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	ledgerdto "github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
)

const (
	refType      = "adjustment"
	numberPrefix = "ADJ"
)

type adjustmentUseCase struct {
	logger    logger.ZapLogger
	repo      adjustment.Repository
	ledger    ledger.UseCase
	catalog   catalog.Repository
	capacity  capacity.UseCase
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewAdjustmentUseCase(
	log logger.ZapLogger,
	repo adjustment.Repository,
	ledgerUC ledger.UseCase,
	catalogRepo catalog.Repository,
	capacityUC capacity.UseCase,
	publisher events.Publisher,
) adjustment.UseCase {
	return &adjustmentUseCase{
		logger:    log,
		repo:      repo,
		ledger:    ledgerUC,
		catalog:   catalogRepo,
		capacity:  capacityUC,
		publisher: publisher,
		tracer:    otel.Tracer("inventory.adjustment"),
	}
}

func (u *adjustmentUseCase) Create(ctx context.Context, input *dto.CreateAdjustmentInput) (*model.StockAdjustment, error) {
	ctx, span := u.tracer.Start(ctx, "adjustment.Create", trace.WithAttributes(
		attribute.String("warehouse_id", input.WarehouseID),
		attribute.Int("lines", len(input.Lines)),
	))
	defer span.End()

	if len(input.Lines) == 0 {
		return nil, adjustment.ErrNoLines
	}

	now := time.Now()
	adjID := uuid.New().String()

	lines := make([]model.AdjustmentLine, 0, len(input.Lines))
	for _, lineInput := range input.Lines {
		if lineInput.QuantityChange == 0 {
			return nil, fmt.Errorf("lot %s: %w", lineInput.LotID, ledger.ErrInvalidQuantity)
		}

		lot, err := u.ledger.GetLot(ctx, lineInput.LotID)
		if err != nil {
			return nil, err
		}
		if lot.WarehouseID != input.WarehouseID {
			return nil, fmt.Errorf("lot %s is in warehouse %s: %w",
				lot.ID, lot.WarehouseID, adjustment.ErrLotNotInWarehouse)
		}
		if lot.OnHandQuantity+lineInput.QuantityChange < 0 {
			return nil, fmt.Errorf("lot %s has %d on hand, change %d: %w",
				lot.ID, lot.OnHandQuantity, lineInput.QuantityChange, ledger.ErrNegativeStock)
		}

		reason := lineInput.Reason
		if reason == "" {
			reason = input.Reason
		}
		lines = append(lines, model.AdjustmentLine{
			ID:             uuid.New().String(),
			AdjustmentID:   adjID,
			LotID:          lot.ID,
			QuantityBefore: lot.OnHandQuantity,
			QuantityChange: lineInput.QuantityChange,
			QuantityAfter:  lot.OnHandQuantity + lineInput.QuantityChange,
			UnitCost:       lot.UnitCost,
			ValueChange:    lot.UnitCost.Mul(decimal.NewFromInt(lineInput.QuantityChange)),
			Reason:         reason,
			Notes:          lineInput.Notes,
		})
	}

	number, err := u.nextNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	adj := &model.StockAdjustment{
		BaseModel: model.BaseModel{
			ID:        adjID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		AdjustmentNumber: number,
		WarehouseID:      input.WarehouseID,
		AdjustmentType:   input.AdjustmentType,
		Status:           model.AdjustmentStatusPending,
		Reason:           input.Reason,
		CreatedBy:        auth.StaffIDRef(ctx),
	}
	if err := u.repo.Create(ctx, adj, lines); err != nil {
		return nil, err
	}
	adj.Lines = lines

	u.logger.Info("adjustment drafted",
		zap.String("adjustment_number", number),
		zap.String("warehouse_id", input.WarehouseID),
		zap.Int("lines", len(lines)),
	)
	return adj, nil
}

func (u *adjustmentUseCase) nextNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := numberPrefix + now.Format("20060102")
	count, err := u.repo.CountByNumberPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (u *adjustmentUseCase) Approve(ctx context.Context, id string) (*model.StockAdjustment, error) {
	return u.review(ctx, id, model.AdjustmentStatusApproved)
}

func (u *adjustmentUseCase) Reject(ctx context.Context, id string) (*model.StockAdjustment, error) {
	return u.review(ctx, id, model.AdjustmentStatusRejected)
}

func (u *adjustmentUseCase) review(ctx context.Context, id, verdict string) (*model.StockAdjustment, error) {
	adj, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, fmt.Errorf("adjustment %s: %w", id, adjustment.ErrAdjustmentNotFound)
	}
	if adj.Status != model.AdjustmentStatusPending {
		return nil, fmt.Errorf("adjustment %s is %s: %w",
			adj.AdjustmentNumber, adj.Status, adjustment.ErrNotPending)
	}

	now := time.Now()
	adj.Status = verdict
	adj.ReviewedBy = auth.StaffIDRef(ctx)
	adj.ReviewedAt = &now
	if err := u.repo.Update(ctx, adj); err != nil {
		return nil, err
	}

	u.logger.Info("adjustment reviewed",
		zap.String("adjustment_number", adj.AdjustmentNumber),
		zap.String("status", verdict),
	)
	return adj, nil
}

func (u *adjustmentUseCase) Apply(ctx context.Context, id string) (*model.StockAdjustment, error) {
	ctx, span := u.tracer.Start(ctx, "adjustment.Apply", trace.WithAttributes(
		attribute.String("adjustment_id", id),
	))
	defer span.End()

	adj, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, fmt.Errorf("adjustment %s: %w", id, adjustment.ErrAdjustmentNotFound)
	}
	if adj.Status == model.AdjustmentStatusCompleted {
		return nil, fmt.Errorf("adjustment %s: %w", adj.AdjustmentNumber, adjustment.ErrAlreadyApplied)
	}
	if adj.Status != model.AdjustmentStatusApproved {
		return nil, fmt.Errorf("adjustment %s is %s: %w",
			adj.AdjustmentNumber, adj.Status, adjustment.ErrNotApproved)
	}

	lines, err := u.repo.LinesByAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("adjustment %s: %w", adj.AdjustmentNumber, adjustment.ErrNoLines)
	}

	inputs := make([]ledgerdto.AdjustInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, ledgerdto.AdjustInput{
			LotID:          line.LotID,
			QuantityChange: line.QuantityChange,
			NewStatus:      u.retiredStatus(ctx, adj.AdjustmentType, line),
			Reason:         line.Reason,
			Notes:          line.Notes,
		})
	}

	ref := ledgerdto.MovementRef{Type: refType, ID: adj.ID, Notes: adj.Reason}
	updated, err := u.ledger.AdjustLines(ctx, inputs, ref)
	if err != nil {
		return nil, err
	}

	// Rewrite line snapshots with the quantities the ledger actually saw.
	for i := range lines {
		lines[i].QuantityAfter = updated[i].OnHandQuantity
		lines[i].QuantityBefore = updated[i].OnHandQuantity - lines[i].QuantityChange
		lines[i].ValueChange = updated[i].UnitCost.Mul(decimal.NewFromInt(lines[i].QuantityChange))
	}
	if err := u.repo.UpdateLines(ctx, lines); err != nil {
		u.logger.Warn("failed to refresh adjustment line snapshots",
			zap.String("adjustment_id", adj.ID), zap.Error(err))
	}

	now := time.Now()
	adj.Status = model.AdjustmentStatusCompleted
	adj.AppliedAt = &now
	if err := u.repo.Update(ctx, adj); err != nil {
		// Stock is already adjusted; this needs an operator, not a retry.
		u.logger.Error("stock adjusted but adjustment not marked completed",
			zap.String("adjustment_id", adj.ID),
			zap.Error(err),
		)
		return nil, err
	}
	adj.Lines = lines

	u.moveOccupancy(ctx, updated, lines)

	u.publisher.Publish(ctx, events.TypeAdjustmentApplied, adj.WarehouseID, events.AdjustmentPayload{
		AdjustmentID:     adj.ID,
		AdjustmentNumber: adj.AdjustmentNumber,
		WarehouseID:      adj.WarehouseID,
		Status:           adj.Status,
	})
	u.logger.Info("adjustment applied",
		zap.String("adjustment_number", adj.AdjustmentNumber),
		zap.Int("lines", len(lines)),
	)
	return adj, nil
}

// retiredStatus decides whether a write-off line should retire its lot.
// Damage and expiry write-offs that empty the lot flip its status so the
// allocator stops seeing it.
func (u *adjustmentUseCase) retiredStatus(ctx context.Context, adjustmentType string, line model.AdjustmentLine) string {
	if line.QuantityChange >= 0 {
		return ""
	}
	lot, err := u.ledger.GetLot(ctx, line.LotID)
	if err != nil || lot.OnHandQuantity+line.QuantityChange != 0 {
		return ""
	}
	switch adjustmentType {
	case model.AdjustmentTypeDamaged:
		return model.LotStatusDamaged
	case model.AdjustmentTypeExpired:
		return model.LotStatusExpired
	}
	return ""
}

// moveOccupancy trails shelf counters after applied quantity changes.
func (u *adjustmentUseCase) moveOccupancy(ctx context.Context, lots []model.StockLot, lines []model.AdjustmentLine) {
	products := map[string]*model.Product{}
	for i, lot := range lots {
		if lot.LocationID == nil || lines[i].QuantityChange == 0 {
			continue
		}

		product, ok := products[lot.ProductID]
		if !ok {
			var err error
			product, err = u.catalog.FindByID(ctx, lot.ProductID)
			if err != nil || product == nil {
				continue
			}
			products[lot.ProductID] = product
		}

		change := lines[i].QuantityChange
		qty := decimal.NewFromInt(change)
		if change < 0 {
			qty = qty.Neg()
		}
		volume := product.UnitVolume().Mul(qty)
		weight := product.UnitWeight().Mul(qty)

		var err error
		if change > 0 {
			err = u.capacity.OnStockPlaced(ctx, *lot.LocationID, volume, weight)
		} else {
			err = u.capacity.OnStockRemoved(ctx, *lot.LocationID, volume, weight)
		}
		if err != nil {
			u.logger.Warn("failed to move occupancy for adjusted stock",
				zap.String("lot_id", lot.ID),
				zap.String("location_id", *lot.LocationID),
				zap.Error(err),
			)
		}
	}
}

func (u *adjustmentUseCase) Get(ctx context.Context, id string) (*model.StockAdjustment, error) {
	adj, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, fmt.Errorf("adjustment %s: %w", id, adjustment.ErrAdjustmentNotFound)
	}
	lines, err := u.repo.LinesByAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	adj.Lines = lines
	return adj, nil
}

func (u *adjustmentUseCase) Find(ctx context.Context, filters *dto.AdjustmentFilters) ([]model.StockAdjustment, int, error) {
	return u.repo.FindAll(ctx, filters)
}
