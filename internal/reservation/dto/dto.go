package dto

import (
	"time"

	"github.com/wareflow/inventory-service/internal/model"
)

type ReserveInput struct {
	ProductID   string
	WarehouseID *string // nil reserves across all warehouses
	Quantity    int64
	OrderID     string
	CustomerID  string
	TTL         time.Duration // 0 uses the configured default
	Notes       string
}

type ReservationFilters struct {
	ProductID      string
	WarehouseID    string
	Status         string
	OrderID        string
	CustomerID     string
	ExpiringBefore *time.Time
	Page           int
	PageSize       int
}

// Availability answers "can this quantity be promised right now".
type Availability struct {
	ProductID         string           `json:"product_id"`
	RequestedQuantity int64            `json:"requested_quantity"`
	TotalAvailable    int64            `json:"total_available"`
	CanFulfill        bool             `json:"can_fulfill"`
	CanBackorder      bool             `json:"can_backorder"`
	Lots              []model.StockLot `json:"lots,omitempty"`
}
