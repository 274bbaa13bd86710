package model

import "time"

const (
	ReservationStatusReserved          = "reserved"
	ReservationStatusPartiallyReserved = "partially_reserved"
	ReservationStatusAllocated         = "allocated"
	ReservationStatusReleased          = "released"
	ReservationStatusCancelled         = "cancelled"
)

type Reservation struct {
	BaseModel
	ReservationNumber string     `db:"reservation_number" json:"reservation_number"`
	ProductID         string     `db:"product_id" json:"product_id"`
	WarehouseID       *string    `db:"warehouse_id" json:"warehouse_id"` // Nullable: nil reserves across all warehouses
	Quantity          int64      `db:"quantity" json:"quantity"`
	BackorderQuantity int64      `db:"backorder_quantity" json:"backorder_quantity"`
	Status            string     `db:"status" json:"status"`
	OrderID           *string    `db:"order_id" json:"order_id"`
	CustomerID        *string    `db:"customer_id" json:"customer_id"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	ReservedAt        time.Time  `db:"reserved_at" json:"reserved_at"`
	AllocatedAt       *time.Time `db:"allocated_at" json:"allocated_at"`
	ReleasedAt        *time.Time `db:"released_at" json:"released_at"`
	Notes             string     `db:"notes" json:"notes"`
	Lines             []AllocationLine `db:"-" json:"lines"`
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CanAllocate reports whether the reservation still holds stock that can be
// committed.
func (r *Reservation) CanAllocate(now time.Time) bool {
	if r.Status != ReservationStatusReserved && r.Status != ReservationStatusPartiallyReserved {
		return false
	}
	return !r.IsExpired(now)
}

// AllocationLine pins part of a reservation to a concrete lot.
// One line per (reservation, lot) pair.
type AllocationLine struct {
	ID            string    `db:"id" json:"id"`
	ReservationID string    `db:"reservation_id" json:"reservation_id"`
	LotID         string    `db:"lot_id" json:"lot_id"`
	Quantity      int64     `db:"quantity" json:"quantity"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
