package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LotStatusActive      = "active"
	LotStatusQuarantined = "quarantined"
	LotStatusDamaged     = "damaged"
	LotStatusExpired     = "expired"
	LotStatusInTransit   = "in_transit"
)

const (
	MovementReceive     = "receive"
	MovementReserve     = "reserve"
	MovementRelease     = "release"
	MovementCommit      = "commit"
	MovementAdjustment  = "adjustment"
	MovementTransferOut = "transfer_out"
	MovementTransferIn  = "transfer_in"
)

type StockLot struct {
	BaseModel
	ProductID         string          `db:"product_id" json:"product_id"`
	WarehouseID       string          `db:"warehouse_id" json:"warehouse_id"`
	LocationID        *string         `db:"location_id" json:"location_id"` // Nullable
	BatchNumber       *string         `db:"batch_number" json:"batch_number"`
	OnHandQuantity    int64           `db:"on_hand_quantity" json:"on_hand_quantity"`
	ReservedQuantity  int64           `db:"reserved_quantity" json:"reserved_quantity"`
	AvailableQuantity int64           `db:"available_quantity" json:"available_quantity"` // on_hand - reserved, maintained on every write
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalValue        decimal.Decimal `db:"total_value" json:"total_value"`
	ManufacturingDate *time.Time      `db:"manufacturing_date" json:"manufacturing_date"`
	ExpiryDate        *time.Time      `db:"expiry_date" json:"expiry_date"`
	Status            string          `db:"status" json:"status"`
}

func (l *StockLot) IsExpired(now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// Recalculate refreshes the derived columns after a quantity change.
func (l *StockLot) Recalculate() {
	l.AvailableQuantity = l.OnHandQuantity - l.ReservedQuantity
	l.TotalValue = l.UnitCost.Mul(decimal.NewFromInt(l.OnHandQuantity))
}

// StockMovement is the append-only audit row written alongside every lot
// mutation. QuantityBefore/QuantityAfter track on-hand for physical movements
// and the reserved counter for reserve/release.
type StockMovement struct {
	ID             string    `db:"id" json:"id"`
	LotID          string    `db:"lot_id" json:"lot_id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	WarehouseID    string    `db:"warehouse_id" json:"warehouse_id"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	QuantityChange int64     `db:"quantity_change" json:"quantity_change"`
	QuantityBefore int64     `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int64     `db:"quantity_after" json:"quantity_after"`
	ReferenceType  *string   `db:"reference_type" json:"reference_type"`
	ReferenceID    *string   `db:"reference_id" json:"reference_id"`
	Notes          string    `db:"notes" json:"notes"`
	CreatedBy      *string   `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
