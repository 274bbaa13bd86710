package reservation

import (
	"context"
	"time"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/reservation/dto"
)

type Repository interface {
	// Create writes the reservation and its lot lines in one transaction.
	Create(ctx context.Context, reservation *model.Reservation, lines []model.AllocationLine) error
	Update(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByNumber(ctx context.Context, number string) (*model.Reservation, error)
	FindAll(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)
	// FindExpired returns still-holding reservations whose expiry has
	// passed, oldest expiry first.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int, error)

	LinesByReservation(ctx context.Context, reservationID string) ([]model.AllocationLine, error)
	DeleteLines(ctx context.Context, reservationID string) error
}
