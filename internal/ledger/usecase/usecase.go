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
	"github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
)

type ledgerUseCase struct {
	logger    logger.ZapLogger
	repo      ledger.Repository
	catalog   catalog.Repository
	capacity  capacity.UseCase
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewLedgerUseCase(
	log logger.ZapLogger,
	repo ledger.Repository,
	catalogRepo catalog.Repository,
	capacityUC capacity.UseCase,
	publisher events.Publisher,
) ledger.UseCase {
	return &ledgerUseCase{
		logger:    log,
		repo:      repo,
		catalog:   catalogRepo,
		capacity:  capacityUC,
		publisher: publisher,
		tracer:    otel.Tracer("inventory.ledger"),
	}
}

func strRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newMovement builds the audit template for one ledger mutation. Lot identity
// and before/after quantities are filled by the repository under the row lock.
func (u *ledgerUseCase) newMovement(ctx context.Context, movementType string, change int64, ref dto.MovementRef) *model.StockMovement {
	return &model.StockMovement{
		ID:             uuid.New().String(),
		MovementType:   movementType,
		QuantityChange: change,
		ReferenceType:  strRef(ref.Type),
		ReferenceID:    strRef(ref.ID),
		Notes:          ref.Notes,
		CreatedBy:      auth.StaffIDRef(ctx),
		CreatedAt:      time.Now(),
	}
}

func (u *ledgerUseCase) Reserve(ctx context.Context, lotID string, qty int64, ref dto.MovementRef) (*model.StockLot, error) {
	ctx, span := u.tracer.Start(ctx, "ledger.Reserve", trace.WithAttributes(
		attribute.String("lot_id", lotID),
		attribute.Int64("quantity", qty),
	))
	defer span.End()

	if qty <= 0 {
		return nil, ledger.ErrInvalidQuantity
	}

	lot, err := u.repo.Reserve(ctx, dto.StockOperation{
		LotID:    lotID,
		Quantity: qty,
		Movement: u.newMovement(ctx, model.MovementReserve, qty, ref),
	})
	if err != nil {
		return nil, err
	}

	u.logger.Debug("stock reserved",
		zap.String("lot_id", lot.ID),
		zap.Int64("quantity", qty),
		zap.Int64("available", lot.AvailableQuantity),
	)
	return lot, nil
}

func (u *ledgerUseCase) Release(ctx context.Context, lotID string, qty int64, ref dto.MovementRef) error {
	return u.ReleaseLines(ctx, []dto.LineQuantity{{LotID: lotID, Quantity: qty}}, ref)
}

func (u *ledgerUseCase) ReleaseLines(ctx context.Context, lines []dto.LineQuantity, ref dto.MovementRef) error {
	ctx, span := u.tracer.Start(ctx, "ledger.ReleaseLines", trace.WithAttributes(
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	ops := make([]dto.StockOperation, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("lot %s: %w", line.LotID, ledger.ErrInvalidQuantity)
		}
		ops = append(ops, dto.StockOperation{
			LotID:    line.LotID,
			Quantity: line.Quantity,
			Movement: u.newMovement(ctx, model.MovementRelease, -line.Quantity, ref),
		})
	}

	if err := u.repo.ReleaseBatch(ctx, ops); err != nil {
		return err
	}
	u.logger.Debug("stock released", zap.Int("lines", len(ops)))
	return nil
}

func (u *ledgerUseCase) CommitLines(ctx context.Context, lines []dto.LineQuantity, ref dto.MovementRef) error {
	ctx, span := u.tracer.Start(ctx, "ledger.CommitLines", trace.WithAttributes(
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	ops := make([]dto.StockOperation, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("lot %s: %w", line.LotID, ledger.ErrInvalidQuantity)
		}
		ops = append(ops, dto.StockOperation{
			LotID:    line.LotID,
			Quantity: line.Quantity,
			Movement: u.newMovement(ctx, model.MovementCommit, -line.Quantity, ref),
		})
	}

	if err := u.repo.CommitBatch(ctx, ops); err != nil {
		return err
	}
	u.logger.Debug("stock committed", zap.Int("lines", len(ops)))
	return nil
}

func (u *ledgerUseCase) Receive(ctx context.Context, input *dto.ReceiveInput) (*model.StockLot, error) {
	ctx, span := u.tracer.Start(ctx, "ledger.Receive", trace.WithAttributes(
		attribute.String("product_id", input.ProductID),
		attribute.String("warehouse_id", input.WarehouseID),
		attribute.Int64("quantity", input.Quantity),
	))
	defer span.End()

	if input.Quantity <= 0 {
		return nil, ledger.ErrInvalidQuantity
	}

	product, err := u.catalog.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, catalog.ErrProductNotFound)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product %s: %w", product.SKU, ledger.ErrProductInactive)
	}
	if !product.TrackInventory {
		return nil, fmt.Errorf("product %s: %w", product.SKU, ledger.ErrUntrackedProduct)
	}

	unitCost := decimal.Zero
	if input.UnitCost != nil {
		unitCost = *input.UnitCost
	} else if product.CostPrice != nil {
		unitCost = *product.CostPrice
	}

	qty := decimal.NewFromInt(input.Quantity)
	volume := product.UnitVolume().Mul(qty)
	weight := product.UnitWeight().Mul(qty)

	locationID, err := u.resolvePlacement(ctx, input.WarehouseID, input.LocationID, input.ProductID, volume, weight)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candidate := &model.StockLot{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ProductID:         input.ProductID,
		WarehouseID:       input.WarehouseID,
		LocationID:        locationID,
		BatchNumber:       input.BatchNumber,
		UnitCost:          unitCost,
		ManufacturingDate: input.ManufacturingDate,
		ExpiryDate:        input.ExpiryDate,
		Status:            model.LotStatusActive,
	}
	movement := u.newMovement(ctx, model.MovementReceive, input.Quantity, dto.MovementRef{
		Type:  input.ReferenceType,
		ID:    input.ReferenceID,
		Notes: input.Notes,
	})

	lot, err := u.repo.Receive(ctx, candidate, input.Quantity, movement)
	if err != nil {
		return nil, err
	}

	// A merge keeps the existing lot's placement; adopt the resolved one
	// only when the lot had none.
	newlyPlaced := lot.ID == candidate.ID && lot.LocationID != nil
	if lot.ID != candidate.ID && lot.LocationID == nil && locationID != nil {
		if err := u.repo.SetLotLocation(ctx, lot.ID, locationID); err != nil {
			u.logger.Error("failed to place received lot",
				zap.String("lot_id", lot.ID), zap.Error(err))
		} else {
			lot.LocationID = locationID
			newlyPlaced = true
		}
	}

	if lot.LocationID != nil {
		if err := u.capacity.OnStockPlaced(ctx, *lot.LocationID, volume, weight); err != nil {
			// Stock is on hand regardless of the shelf race; unplace and
			// leave it for putaway.
			u.logger.Warn("could not occupy location for received stock",
				zap.String("lot_id", lot.ID),
				zap.String("location_id", *lot.LocationID),
				zap.Error(err),
			)
			if newlyPlaced {
				_ = u.repo.SetLotLocation(ctx, lot.ID, nil)
				lot.LocationID = nil
			}
		}
	}

	u.publisher.Publish(ctx, events.TypeStockReceived, lot.ProductID, events.StockPayload{
		LotID:          lot.ID,
		ProductID:      lot.ProductID,
		WarehouseID:    lot.WarehouseID,
		MovementType:   model.MovementReceive,
		QuantityChange: input.Quantity,
		QuantityAfter:  lot.OnHandQuantity,
	})
	u.logger.Info("stock received",
		zap.String("lot_id", lot.ID),
		zap.String("product_id", lot.ProductID),
		zap.String("warehouse_id", lot.WarehouseID),
		zap.Int64("quantity", input.Quantity),
	)
	return lot, nil
}

// resolvePlacement picks where inbound stock should land. An explicit
// location is validated against capacity; otherwise the best fit is chosen,
// preferring locations already holding the product. Returns nil when nothing
// fits.
func (u *ledgerUseCase) resolvePlacement(ctx context.Context, warehouseID string, explicit *string, productID string, volume, weight decimal.Decimal) (*string, error) {
	if explicit != nil && *explicit != "" {
		if err := u.capacity.CanPlace(ctx, *explicit, volume, weight); err != nil {
			return nil, err
		}
		return explicit, nil
	}

	lots, err := u.repo.AvailableLots(ctx, productID, &warehouseID)
	if err != nil {
		return nil, err
	}
	preferred := make([]string, 0, len(lots))
	for _, lot := range lots {
		if lot.LocationID != nil {
			preferred = append(preferred, *lot.LocationID)
		}
	}

	best, err := u.capacity.FindBestLocation(ctx, warehouseID, volume, weight, preferred)
	if err != nil {
		return nil, err
	}
	if best == nil {
		u.logger.Warn("no storage location fits inbound stock",
			zap.String("warehouse_id", warehouseID),
			zap.String("product_id", productID),
		)
		return nil, nil
	}
	return &best.ID, nil
}

func (u *ledgerUseCase) Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockLot, error) {
	lots, err := u.AdjustLines(ctx, []dto.AdjustInput{*input}, dto.MovementRef{})
	if err != nil {
		return nil, err
	}
	return &lots[0], nil
}

func (u *ledgerUseCase) AdjustLines(ctx context.Context, inputs []dto.AdjustInput, ref dto.MovementRef) ([]model.StockLot, error) {
	ctx, span := u.tracer.Start(ctx, "ledger.AdjustLines", trace.WithAttributes(
		attribute.Int("lines", len(inputs)),
	))
	defer span.End()

	ops := make([]dto.AdjustOperation, 0, len(inputs))
	for _, input := range inputs {
		if input.QuantityChange == 0 && input.NewStatus == "" {
			return nil, fmt.Errorf("lot %s: %w", input.LotID, ledger.ErrInvalidQuantity)
		}

		lineRef := ref
		if input.ReferenceType != "" {
			lineRef.Type = input.ReferenceType
		}
		if input.ReferenceID != "" {
			lineRef.ID = input.ReferenceID
		}
		lineRef.Notes = input.Notes
		if lineRef.Notes == "" {
			lineRef.Notes = input.Reason
		}

		ops = append(ops, dto.AdjustOperation{
			LotID:          input.LotID,
			QuantityChange: input.QuantityChange,
			NewStatus:      input.NewStatus,
			Movement:       u.newMovement(ctx, model.MovementAdjustment, input.QuantityChange, lineRef),
		})
	}

	lots, err := u.repo.AdjustBatch(ctx, ops)
	if err != nil {
		return nil, err
	}

	for i := range lots {
		u.publisher.Publish(ctx, events.TypeStockAdjusted, lots[i].ProductID, events.StockPayload{
			LotID:          lots[i].ID,
			ProductID:      lots[i].ProductID,
			WarehouseID:    lots[i].WarehouseID,
			MovementType:   model.MovementAdjustment,
			QuantityChange: ops[i].QuantityChange,
			QuantityAfter:  lots[i].OnHandQuantity,
		})
	}
	u.logger.Info("stock adjusted", zap.Int("lines", len(lots)))
	return lots, nil
}

func (u *ledgerUseCase) TransferLines(ctx context.Context, destWarehouseID string, lines []dto.LineQuantity, ref dto.MovementRef) ([]model.StockLot, error) {
	ctx, span := u.tracer.Start(ctx, "ledger.TransferLines", trace.WithAttributes(
		attribute.String("dest_warehouse_id", destWarehouseID),
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	// Capture source placements up front so occupancy can follow the move.
	sources := make([]*model.StockLot, len(lines))
	ops := make([]dto.TransferLineOperation, 0, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("lot %s: %w", line.LotID, ledger.ErrInvalidQuantity)
		}
		lot, err := u.repo.GetLot(ctx, line.LotID)
		if err != nil {
			return nil, err
		}
		if lot == nil {
			return nil, fmt.Errorf("lot %s: %w", line.LotID, ledger.ErrLotNotFound)
		}
		sources[i] = lot

		ops = append(ops, dto.TransferLineOperation{
			SourceLotID: line.LotID,
			Quantity:    line.Quantity,
			OutMovement: u.newMovement(ctx, model.MovementTransferOut, -line.Quantity, ref),
			InMovement:  u.newMovement(ctx, model.MovementTransferIn, line.Quantity, ref),
		})
	}

	dests, err := u.repo.TransferBatch(ctx, destWarehouseID, ops)
	if err != nil {
		return nil, err
	}

	products := map[string]*model.Product{}
	for i, src := range sources {
		if src.LocationID == nil {
			continue
		}
		product, ok := products[src.ProductID]
		if !ok {
			product, err = u.catalog.FindByID(ctx, src.ProductID)
			if err != nil || product == nil {
				u.logger.Warn("cannot size transferred stock, source occupancy kept",
					zap.String("product_id", src.ProductID), zap.Error(err))
				continue
			}
			products[src.ProductID] = product
		}

		qty := decimal.NewFromInt(lines[i].Quantity)
		if err := u.capacity.OnStockRemoved(ctx, *src.LocationID, product.UnitVolume().Mul(qty), product.UnitWeight().Mul(qty)); err != nil {
			u.logger.Warn("failed to release source occupancy",
				zap.String("lot_id", src.ID),
				zap.String("location_id", *src.LocationID),
				zap.Error(err),
			)
		}
	}

	u.logger.Info("stock transferred",
		zap.String("dest_warehouse_id", destWarehouseID),
		zap.Int("lines", len(lines)),
	)
	return dests, nil
}

func (u *ledgerUseCase) PutAway(ctx context.Context, lotID string, locationID *string) (*model.StockLot, error) {
	ctx, span := u.tracer.Start(ctx, "ledger.PutAway", trace.WithAttributes(
		attribute.String("lot_id", lotID),
	))
	defer span.End()

	lot, err := u.repo.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("lot %s: %w", lotID, ledger.ErrLotNotFound)
	}

	product, err := u.catalog.FindByID(ctx, lot.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", lot.ProductID, catalog.ErrProductNotFound)
	}

	qty := decimal.NewFromInt(lot.OnHandQuantity)
	volume := product.UnitVolume().Mul(qty)
	weight := product.UnitWeight().Mul(qty)

	var target *string
	if locationID != nil && *locationID != "" {
		if err := u.capacity.CanPlace(ctx, *locationID, volume, weight); err != nil {
			return nil, err
		}
		target = locationID
	} else {
		best, err := u.capacity.FindBestLocation(ctx, lot.WarehouseID, volume, weight, nil)
		if err != nil {
			return nil, err
		}
		if best != nil {
			target = &best.ID
		}
	}

	if target == nil {
		// Nothing fits; keep whatever placement the lot already has.
		if lot.LocationID == nil {
			u.logger.Warn("no storage location fits lot",
				zap.String("lot_id", lot.ID),
				zap.String("warehouse_id", lot.WarehouseID),
			)
		}
		return lot, nil
	}
	if lot.LocationID != nil && *target == *lot.LocationID {
		return lot, nil
	}

	if lot.LocationID != nil {
		if err := u.capacity.OnStockRemoved(ctx, *lot.LocationID, volume, weight); err != nil {
			u.logger.Warn("failed to vacate previous location",
				zap.String("lot_id", lot.ID), zap.Error(err))
		}
	}

	if err := u.repo.SetLotLocation(ctx, lot.ID, target); err != nil {
		return nil, err
	}
	lot.LocationID = target

	if err := u.capacity.OnStockPlaced(ctx, *target, volume, weight); err != nil {
		u.logger.Warn("could not occupy target location",
			zap.String("lot_id", lot.ID), zap.Error(err))
		_ = u.repo.SetLotLocation(ctx, lot.ID, nil)
		lot.LocationID = nil
	}

	u.logger.Debug("lot put away", zap.String("lot_id", lot.ID))
	return lot, nil
}

func (u *ledgerUseCase) MarkExpiredLots(ctx context.Context) (int64, error) {
	n, err := u.repo.MarkExpiredLots(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.logger.Info("expired lots marked", zap.Int64("count", n))
	}
	return n, nil
}

func (u *ledgerUseCase) GetLot(ctx context.Context, id string) (*model.StockLot, error) {
	lot, err := u.repo.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
	}
	return lot, nil
}

func (u *ledgerUseCase) FindLots(ctx context.Context, filters *dto.LotFilters) ([]model.StockLot, int, error) {
	return u.repo.FindLots(ctx, filters)
}

func (u *ledgerUseCase) AvailableLots(ctx context.Context, productID string, warehouseID *string) ([]model.StockLot, error) {
	return u.repo.AvailableLots(ctx, productID, warehouseID)
}

func (u *ledgerUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return u.repo.ListMovements(ctx, filters)
}

func (u *ledgerUseCase) ListLowStock(ctx context.Context, threshold int64, warehouseID string, page, pageSize int) ([]model.StockLot, int, error) {
	return u.repo.FindLots(ctx, &dto.LotFilters{
		WarehouseID: warehouseID,
		Status:      model.LotStatusActive,
		LowStockAt:  &threshold,
		Page:        page,
		PageSize:    pageSize,
	})
}

func (u *ledgerUseCase) Summary(ctx context.Context, filters *dto.SummaryFilters) (*dto.StockSummary, error) {
	return u.repo.Summary(ctx, filters)
}
