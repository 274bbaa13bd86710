package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wareflow/inventory-service/internal/catalog"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	ledgerdto "github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/reservation"
	"github.com/wareflow/inventory-service/internal/reservation/dto"
)

const (
	maxReservePasses = 3
	lockTTL          = 5 * time.Second
	lockRetryDelay   = 100 * time.Millisecond

	refType      = "reservation"
	numberPrefix = "RES"
)

type reservationUseCase struct {
	logger     logger.ZapLogger
	repo       reservation.Repository
	ledger     ledger.UseCase
	catalog    catalog.Repository
	locker     reservation.Locker
	publisher  events.Publisher
	tracer     trace.Tracer
	defaultTTL time.Duration
}

func NewReservationUseCase(
	log logger.ZapLogger,
	repo reservation.Repository,
	ledgerUC ledger.UseCase,
	catalogRepo catalog.Repository,
	locker reservation.Locker,
	publisher events.Publisher,
	defaultTTL time.Duration,
) reservation.UseCase {
	return &reservationUseCase{
		logger:     log,
		repo:       repo,
		ledger:     ledgerUC,
		catalog:    catalogRepo,
		locker:     locker,
		publisher:  publisher,
		tracer:     otel.Tracer("inventory.reservation"),
		defaultTTL: defaultTTL,
	}
}

func strRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (u *reservationUseCase) CheckAvailability(ctx context.Context, productID string, warehouseID *string, qty int64) (*dto.Availability, error) {
	product, err := u.catalog.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, catalog.ErrProductNotFound)
	}

	avail := &dto.Availability{
		ProductID:         productID,
		RequestedQuantity: qty,
		CanBackorder:      product.AllowBackorder,
	}
	if !product.TrackInventory {
		// Untracked products are never constrained by the ledger.
		avail.CanFulfill = true
		return avail, nil
	}

	lots, err := u.ledger.AvailableLots(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	for _, lot := range lots {
		avail.TotalAvailable += lot.AvailableQuantity
	}
	avail.Lots = lots
	avail.CanFulfill = avail.TotalAvailable >= qty
	return avail, nil
}

func (u *reservationUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error) {
	ctx, span := u.tracer.Start(ctx, "reservation.Reserve", trace.WithAttributes(
		attribute.String("product_id", input.ProductID),
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

	if u.locker != nil {
		lockKey := "reserve:product:" + input.ProductID
		lockValue := uuid.New().String()
		var locked bool
		for i := 0; i < 3; i++ {
			locked, err = u.locker.AcquireLock(ctx, lockKey, lockValue, lockTTL)
			if err != nil {
				return nil, err
			}
			if locked {
				break
			}
			time.Sleep(lockRetryDelay)
		}
		if !locked {
			return nil, fmt.Errorf("product %s: %w", input.ProductID, reservation.ErrLockNotAcquired)
		}
		defer u.locker.ReleaseLock(context.Background(), lockKey, lockValue)
	}

	now := time.Now()
	resID := uuid.New().String()
	ref := ledgerdto.MovementRef{Type: refType, ID: resID}

	// Greedy pass over lots in expiry order. Lost per-lot races are skipped;
	// a fresh pass re-reads availability until nothing more can be taken.
	takenOrder := []string{}
	takenByLot := map[string]int64{}
	remaining := input.Quantity

	for pass := 0; pass < maxReservePasses && remaining > 0; pass++ {
		lots, err := u.ledger.AvailableLots(ctx, input.ProductID, input.WarehouseID)
		if err != nil {
			u.compensate(ctx, resID, takenOrder, takenByLot)
			return nil, err
		}

		progress := false
		for _, lot := range lots {
			if remaining <= 0 {
				break
			}
			take := lot.AvailableQuantity
			if take > remaining {
				take = remaining
			}
			if take <= 0 {
				continue
			}

			if _, err := u.ledger.Reserve(ctx, lot.ID, take, ref); err != nil {
				if errors.Is(err, ledger.ErrInsufficientStock) {
					continue
				}
				u.compensate(ctx, resID, takenOrder, takenByLot)
				return nil, err
			}
			if _, seen := takenByLot[lot.ID]; !seen {
				takenOrder = append(takenOrder, lot.ID)
			}
			takenByLot[lot.ID] += take
			remaining -= take
			progress = true
		}
		if !progress {
			break
		}
	}

	reserved := input.Quantity - remaining
	status := model.ReservationStatusReserved
	if remaining > 0 {
		if !product.AllowBackorder {
			u.compensate(ctx, resID, takenOrder, takenByLot)
			return nil, fmt.Errorf("product %s has %d of %d available: %w",
				product.SKU, reserved, input.Quantity, ledger.ErrInsufficientStock)
		}
		status = model.ReservationStatusPartiallyReserved
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = u.defaultTTL
	}

	number, err := u.nextNumber(ctx, now)
	if err != nil {
		u.compensate(ctx, resID, takenOrder, takenByLot)
		return nil, err
	}

	res := &model.Reservation{
		BaseModel: model.BaseModel{
			ID:        resID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		ReservationNumber: number,
		ProductID:         input.ProductID,
		WarehouseID:       input.WarehouseID,
		Quantity:          input.Quantity,
		BackorderQuantity: remaining,
		Status:            status,
		OrderID:           strRef(input.OrderID),
		CustomerID:        strRef(input.CustomerID),
		ExpiresAt:         now.Add(ttl),
		ReservedAt:        now,
		Notes:             input.Notes,
	}
	lines := make([]model.AllocationLine, 0, len(takenOrder))
	for _, lotID := range takenOrder {
		lines = append(lines, model.AllocationLine{
			ID:            uuid.New().String(),
			ReservationID: resID,
			LotID:         lotID,
			Quantity:      takenByLot[lotID],
			CreatedAt:     now,
		})
	}

	if err := u.repo.Create(ctx, res, lines); err != nil {
		u.compensate(ctx, resID, takenOrder, takenByLot)
		return nil, err
	}
	res.Lines = lines

	u.publisher.Publish(ctx, events.TypeReservationCreated, res.ProductID, events.ReservationPayload{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		ProductID:         res.ProductID,
		Status:            res.Status,
		Quantity:          res.Quantity,
		BackorderQuantity: res.BackorderQuantity,
	})
	u.logger.Info("reservation created",
		zap.String("reservation_number", res.ReservationNumber),
		zap.String("product_id", res.ProductID),
		zap.Int64("quantity", res.Quantity),
		zap.Int64("backorder_quantity", res.BackorderQuantity),
		zap.Int("lots", len(lines)),
	)
	return res, nil
}

// compensate returns holds taken by a reserve pass that could not finish.
func (u *reservationUseCase) compensate(ctx context.Context, resID string, order []string, byLot map[string]int64) {
	if len(order) == 0 {
		return
	}
	lines := make([]ledgerdto.LineQuantity, 0, len(order))
	for _, lotID := range order {
		lines = append(lines, ledgerdto.LineQuantity{LotID: lotID, Quantity: byLot[lotID]})
	}
	ref := ledgerdto.MovementRef{Type: refType, ID: resID, Notes: "reserve rollback"}
	if err := u.ledger.ReleaseLines(ctx, lines, ref); err != nil {
		u.logger.Error("failed to roll back partial holds",
			zap.String("reservation_id", resID), zap.Error(err))
	}
}

func (u *reservationUseCase) nextNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := numberPrefix + now.Format("20060102")
	count, err := u.repo.CountByNumberPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (u *reservationUseCase) Release(ctx context.Context, id string) (*model.Reservation, error) {
	return u.releaseTo(ctx, id, model.ReservationStatusReleased)
}

func (u *reservationUseCase) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return u.releaseTo(ctx, id, model.ReservationStatusCancelled)
}

// releaseTo flips the reservation to its final status first, then returns the
// held stock. The status flip is the idempotency guard: a crashed release can
// never double-return holds, only leave them for reconciliation.
func (u *reservationUseCase) releaseTo(ctx context.Context, id, finalStatus string) (*model.Reservation, error) {
	ctx, span := u.tracer.Start(ctx, "reservation.Release", trace.WithAttributes(
		attribute.String("reservation_id", id),
		attribute.String("final_status", finalStatus),
	))
	defer span.End()

	res, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, reservation.ErrReservationNotFound)
	}

	switch res.Status {
	case model.ReservationStatusAllocated:
		return nil, fmt.Errorf("reservation %s: %w", res.ReservationNumber, reservation.ErrAlreadyAllocated)
	case model.ReservationStatusReleased, model.ReservationStatusCancelled:
		return res, nil
	}

	lines, err := u.repo.LinesByReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	prevStatus := res.Status
	res.Status = finalStatus
	res.ReleasedAt = &now
	if err := u.repo.Update(ctx, res); err != nil {
		return nil, err
	}

	if len(lines) > 0 {
		lineQty := make([]ledgerdto.LineQuantity, 0, len(lines))
		for _, line := range lines {
			lineQty = append(lineQty, ledgerdto.LineQuantity{LotID: line.LotID, Quantity: line.Quantity})
		}
		ref := ledgerdto.MovementRef{Type: refType, ID: res.ID, Notes: "reservation " + finalStatus}
		if err := u.ledger.ReleaseLines(ctx, lineQty, ref); err != nil {
			// Put the status back so the release can be retried.
			res.Status = prevStatus
			res.ReleasedAt = nil
			if revertErr := u.repo.Update(ctx, res); revertErr != nil {
				u.logger.Error("holds kept but reservation marked released",
					zap.String("reservation_id", res.ID),
					zap.Error(revertErr),
				)
			}
			return nil, err
		}
	}

	if err := u.repo.DeleteLines(ctx, id); err != nil {
		u.logger.Warn("failed to clear reservation lines",
			zap.String("reservation_id", id), zap.Error(err))
	}

	u.publisher.Publish(ctx, events.TypeReservationReleased, res.ProductID, events.ReservationPayload{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		ProductID:         res.ProductID,
		Status:            res.Status,
		Quantity:          res.Quantity,
		BackorderQuantity: res.BackorderQuantity,
	})
	u.logger.Info("reservation released",
		zap.String("reservation_number", res.ReservationNumber),
		zap.String("status", finalStatus),
	)
	return res, nil
}

func (u *reservationUseCase) Get(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, reservation.ErrReservationNotFound)
	}
	return u.attachLines(ctx, res)
}

func (u *reservationUseCase) GetByNumber(ctx context.Context, number string) (*model.Reservation, error) {
	res, err := u.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", number, reservation.ErrReservationNotFound)
	}
	return u.attachLines(ctx, res)
}

func (u *reservationUseCase) attachLines(ctx context.Context, res *model.Reservation) (*model.Reservation, error) {
	lines, err := u.repo.LinesByReservation(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	res.Lines = lines
	return res, nil
}

func (u *reservationUseCase) Find(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return u.repo.FindAll(ctx, filters)
}

func (u *reservationUseCase) FindExpired(ctx context.Context, limit int) ([]model.Reservation, error) {
	return u.repo.FindExpired(ctx, time.Now(), limit)
}
