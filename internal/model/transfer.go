package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransferStatusPending   = "pending"
	TransferStatusApproved  = "approved"
	TransferStatusInTransit = "in_transit"
	TransferStatusReceived  = "received"
	TransferStatusCompleted = "completed"
	TransferStatusCancelled = "cancelled"
)

const (
	TransferPriorityLow    = "low"
	TransferPriorityNormal = "normal"
	TransferPriorityHigh   = "high"
	TransferPriorityUrgent = "urgent"
)

const (
	TransferLineStatusPending  = "pending"
	TransferLineStatusPicked   = "picked"
	TransferLineStatusShipped  = "shipped"
	TransferLineStatusReceived = "received"
)

type StockTransfer struct {
	BaseModel
	TransferNumber  string     `db:"transfer_number" json:"transfer_number"`
	FromWarehouseID string     `db:"from_warehouse_id" json:"from_warehouse_id"`
	ToWarehouseID   string     `db:"to_warehouse_id" json:"to_warehouse_id"`
	Status          string     `db:"status" json:"status"`
	Priority        string     `db:"priority" json:"priority"`
	RequestedBy     *string    `db:"requested_by" json:"requested_by"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by"`
	ReceivedBy      *string    `db:"received_by" json:"received_by"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at"`
	Notes           string     `db:"notes" json:"notes"`

	Lines []TransferLine `db:"-" json:"lines"`
}

type TransferLine struct {
	ID          string          `db:"id" json:"id"`
	TransferID  string          `db:"transfer_id" json:"transfer_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	SourceLotID string          `db:"source_lot_id" json:"source_lot_id"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	BatchNumber *string         `db:"batch_number" json:"batch_number"`
	Status      string          `db:"status" json:"status"`
}
