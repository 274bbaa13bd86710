package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/reservation"
	"github.com/wareflow/inventory-service/internal/sweeper"
)

const lockKey = "sweeper:pass"

type Config struct {
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
}

type sweeperUseCase struct {
	logger       logger.ZapLogger
	reservations reservation.UseCase
	ledger       ledger.UseCase
	locker       reservation.Locker
	publisher    events.Publisher
	cfg          Config
	tracer       trace.Tracer
}

func NewSweeperUseCase(
	log logger.ZapLogger,
	reservations reservation.UseCase,
	ledgerUC ledger.UseCase,
	locker reservation.Locker,
	publisher events.Publisher,
	cfg Config,
) sweeper.UseCase {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &sweeperUseCase{
		logger:       log,
		reservations: reservations,
		ledger:       ledgerUC,
		locker:       locker,
		publisher:    publisher,
		cfg:          cfg,
		tracer:       otel.Tracer("inventory.sweeper"),
	}
}

func (u *sweeperUseCase) Run(ctx context.Context) {
	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	u.logger.Info("expiry sweeper started",
		zap.Duration("interval", u.cfg.Interval),
		zap.Int("batch_size", u.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := u.RunOnce(ctx); err != nil {
				u.logger.Error("sweep pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep pass. With a locker configured only one
// instance sweeps at a time; the others skip their tick.
func (u *sweeperUseCase) RunOnce(ctx context.Context) (*sweeper.Summary, error) {
	ctx, span := u.tracer.Start(ctx, "sweeper.RunOnce")
	defer span.End()

	if u.locker != nil {
		lockValue := uuid.New().String()
		acquired, err := u.locker.AcquireLock(ctx, lockKey, lockValue, u.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			u.logger.Debug("sweep pass already running elsewhere")
			return &sweeper.Summary{}, nil
		}
		defer u.locker.ReleaseLock(context.Background(), lockKey, lockValue)
	}

	summary := &sweeper.Summary{}

	if err := u.releaseExpired(ctx, summary); err != nil {
		return summary, err
	}

	swept, err := u.ledger.MarkExpiredLots(ctx)
	if err != nil {
		return summary, err
	}
	summary.SweptLots = swept

	span.SetAttributes(
		attribute.Int64("swept_lots", summary.SweptLots),
		attribute.Int64("released_reservations", summary.ReleasedReservations),
		attribute.Int64("failed_reservations", summary.FailedReservations),
	)

	if summary.SweptLots > 0 || summary.ReleasedReservations > 0 || summary.FailedReservations > 0 {
		u.publisher.Publish(ctx, events.TypeExpirySweepCompleted, "sweeper", events.SweepSummaryPayload{
			Swept:    summary.SweptLots,
			Released: summary.ReleasedReservations,
			Failed:   summary.FailedReservations,
		})
		u.logger.Info("sweep pass completed",
			zap.Int64("swept_lots", summary.SweptLots),
			zap.Int64("released_reservations", summary.ReleasedReservations),
			zap.Int64("failed_reservations", summary.FailedReservations),
		)
	}
	return summary, nil
}

// releaseExpired returns held stock from reservations whose hold window has
// lapsed. Failures are isolated per reservation so one bad document cannot
// wedge the whole pass.
func (u *sweeperUseCase) releaseExpired(ctx context.Context, summary *sweeper.Summary) error {
	failed := map[string]bool{}

	for {
		expired, err := u.reservations.FindExpired(ctx, u.cfg.BatchSize)
		if err != nil {
			return err
		}

		progressed := false
		for _, res := range expired {
			if failed[res.ID] {
				continue
			}
			if _, err := u.reservations.Release(ctx, res.ID); err != nil {
				failed[res.ID] = true
				summary.FailedReservations++
				u.logger.Error("failed to release expired reservation",
					zap.String("reservation_id", res.ID),
					zap.String("reservation_number", res.ReservationNumber),
					zap.Error(err),
				)
				continue
			}
			progressed = true
			summary.ReleasedReservations++
		}

		// Released reservations drop out of the next query; a batch that
		// releases nothing would come back unchanged.
		if !progressed || len(expired) < u.cfg.BatchSize {
			return nil
		}
	}
}
