package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type LotFilters struct {
	ProductID      string
	WarehouseID    string
	LocationID     string
	Status         string
	BatchNumber    string
	LowStockAt     *int64 // available_quantity <= threshold
	ExpiringBefore *time.Time
	Page           int
	PageSize       int
}

type MovementFilters struct {
	LotID        string
	ProductID    string
	WarehouseID  string
	MovementType string
	ReferenceID  string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

type SummaryFilters struct {
	WarehouseID string
	ProductID   string
}

type StockSummary struct {
	TotalLots      int             `db:"total_lots"`
	TotalOnHand    int64           `db:"total_on_hand"`
	TotalReserved  int64           `db:"total_reserved"`
	TotalAvailable int64           `db:"total_available"`
	TotalValue     decimal.Decimal `db:"total_value"`
	ExpiredLots    int             `db:"expired_lots"`
}
