package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wareflow/inventory-service/internal/allocation"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/catalog"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	ledgerdto "github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/reservation"
)

type allocationUseCase struct {
	logger    logger.ZapLogger
	resRepo   reservation.Repository
	ledger    ledger.UseCase
	catalog   catalog.Repository
	capacity  capacity.UseCase
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewAllocationUseCase(
	log logger.ZapLogger,
	resRepo reservation.Repository,
	ledgerUC ledger.UseCase,
	catalogRepo catalog.Repository,
	capacityUC capacity.UseCase,
	publisher events.Publisher,
) allocation.UseCase {
	return &allocationUseCase{
		logger:    log,
		resRepo:   resRepo,
		ledger:    ledgerUC,
		catalog:   catalogRepo,
		capacity:  capacityUC,
		publisher: publisher,
		tracer:    otel.Tracer("inventory.allocation"),
	}
}

func (u *allocationUseCase) Allocate(ctx context.Context, reservationID string) (*model.Reservation, error) {
	ctx, span := u.tracer.Start(ctx, "allocation.Allocate", trace.WithAttributes(
		attribute.String("reservation_id", reservationID),
	))
	defer span.End()

	res, err := u.resRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, reservation.ErrReservationNotFound)
	}

	now := time.Now()
	if res.Status != model.ReservationStatusReserved && res.Status != model.ReservationStatusPartiallyReserved {
		return nil, fmt.Errorf("reservation %s is %s: %w",
			res.ReservationNumber, res.Status, allocation.ErrNotAllocatable)
	}
	if res.IsExpired(now) {
		return nil, fmt.Errorf("reservation %s expired at %s: %w",
			res.ReservationNumber, res.ExpiresAt.Format(time.RFC3339), allocation.ErrReservationExpired)
	}
	if res.BackorderQuantity > 0 {
		return nil, fmt.Errorf("reservation %s backorders %d: %w",
			res.ReservationNumber, res.BackorderQuantity, allocation.ErrAllocationShortfall)
	}

	lines, err := u.resRepo.LinesByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	var held int64
	for _, line := range lines {
		held += line.Quantity
	}
	if held != res.Quantity {
		return nil, fmt.Errorf("reservation %s holds %d of %d: %w",
			res.ReservationNumber, held, res.Quantity, allocation.ErrAllocationShortfall)
	}

	lineQty := make([]ledgerdto.LineQuantity, 0, len(lines))
	for _, line := range lines {
		lineQty = append(lineQty, ledgerdto.LineQuantity{LotID: line.LotID, Quantity: line.Quantity})
	}
	ref := ledgerdto.MovementRef{Type: "reservation", ID: res.ID, Notes: "allocated"}
	if err := u.ledger.CommitLines(ctx, lineQty, ref); err != nil {
		return nil, err
	}

	res.Status = model.ReservationStatusAllocated
	res.AllocatedAt = &now
	if err := u.resRepo.Update(ctx, res); err != nil {
		// Stock is already committed; a retry fails at CommitLines instead
		// of double-shipping.
		u.logger.Error("stock committed but reservation not marked allocated",
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
		return nil, err
	}
	res.Lines = lines

	u.vacateOccupancy(ctx, lines)

	u.publisher.Publish(ctx, events.TypeReservationAllocated, res.ProductID, events.ReservationPayload{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		ProductID:         res.ProductID,
		Status:            res.Status,
		Quantity:          res.Quantity,
		BackorderQuantity: res.BackorderQuantity,
	})
	u.logger.Info("reservation allocated",
		zap.String("reservation_number", res.ReservationNumber),
		zap.String("product_id", res.ProductID),
		zap.Int64("quantity", res.Quantity),
		zap.Int("lots", len(lines)),
	)
	return res, nil
}

// vacateOccupancy frees shelf space for stock that just left the building.
// Best effort: the committed quantities are the source of truth, occupancy
// only trails them.
func (u *allocationUseCase) vacateOccupancy(ctx context.Context, lines []model.AllocationLine) {
	products := map[string]*model.Product{}
	for _, line := range lines {
		lot, err := u.ledger.GetLot(ctx, line.LotID)
		if err != nil || lot.LocationID == nil {
			continue
		}

		product, ok := products[lot.ProductID]
		if !ok {
			product, err = u.catalog.FindByID(ctx, lot.ProductID)
			if err != nil || product == nil {
				continue
			}
			products[lot.ProductID] = product
		}

		qty := decimal.NewFromInt(line.Quantity)
		err = u.capacity.OnStockRemoved(ctx, *lot.LocationID,
			product.UnitVolume().Mul(qty), product.UnitWeight().Mul(qty))
		if err != nil {
			u.logger.Warn("failed to release occupancy for allocated stock",
				zap.String("lot_id", line.LotID),
				zap.String("location_id", *lot.LocationID),
				zap.Error(err),
			)
		}
	}
}
