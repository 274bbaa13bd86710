package reservation

import (
	"context"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/reservation/dto"
)

type UseCase interface {
	CheckAvailability(ctx context.Context, productID string, warehouseID *string, qty int64) (*dto.Availability, error)
	// Reserve places holds against available lots first-expired-first-out.
	// When stock runs short it reserves what it can and backorders the rest
	// if the product allows it, otherwise nothing is held.
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error)
	// Release returns all held stock and marks the reservation released.
	// Releasing an already released or cancelled reservation is a no-op.
	Release(ctx context.Context, id string) (*model.Reservation, error)
	// Cancel is Release with a cancelled final status.
	Cancel(ctx context.Context, id string) (*model.Reservation, error)

	Get(ctx context.Context, id string) (*model.Reservation, error)
	GetByNumber(ctx context.Context, number string) (*model.Reservation, error)
	Find(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)
	FindExpired(ctx context.Context, limit int) ([]model.Reservation, error)
}
