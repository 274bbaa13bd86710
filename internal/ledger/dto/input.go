package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/model"
)

// MovementRef ties a ledger mutation to the document that caused it.
type MovementRef struct {
	Type  string // 'reservation', 'adjustment', 'transfer', 'order', 'manual'
	ID    string
	Notes string
}

// LineQuantity addresses one lot within a batch operation.
type LineQuantity struct {
	LotID    string
	Quantity int64
}

// StockOperation is one prepared line of a reserve/release/commit batch.
// The movement template carries audit metadata; the lot identity fields and
// quantity before/after are completed from the locked row when it applies.
type StockOperation struct {
	LotID    string
	Quantity int64
	Movement *model.StockMovement
}

// AdjustOperation is one prepared line of an adjustment batch. NewStatus
// overrides the lot status when non-empty (damaged and expired write-offs
// retire the lot).
type AdjustOperation struct {
	LotID          string
	QuantityChange int64
	NewStatus      string
	Movement       *model.StockMovement
}

// TransferLineOperation moves quantity out of a source lot and into the
// matching lot of the destination warehouse, carrying batch and unit cost.
// Destination lots are created unplaced; putaway is a separate step.
type TransferLineOperation struct {
	SourceLotID string
	Quantity    int64
	OutMovement *model.StockMovement
	InMovement  *model.StockMovement
}

type ReceiveInput struct {
	ProductID         string
	WarehouseID       string
	LocationID        *string // nil resolves via best-fit placement
	BatchNumber       *string
	Quantity          int64
	UnitCost          *decimal.Decimal // nil defaults from the catalog cost price
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	Notes             string
	ReferenceType     string
	ReferenceID       string
}

type AdjustInput struct {
	LotID          string
	QuantityChange int64
	NewStatus      string // optional status override, e.g. retiring a damaged lot
	Reason         string
	Notes          string
	ReferenceType  string
	ReferenceID    string
}
