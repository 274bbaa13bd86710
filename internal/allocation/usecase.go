package allocation

import (
	"context"

	"github.com/wareflow/inventory-service/internal/model"
)

type UseCase interface {
	// Allocate converts a reservation's holds into committed stock removal,
	// every line or none. Only a fully held, unexpired reservation
	// qualifies; backordered quantity is a shortfall.
	Allocate(ctx context.Context, reservationID string) (*model.Reservation, error)
}
