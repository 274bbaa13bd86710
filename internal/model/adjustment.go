package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AdjustmentStatusPending   = "pending"
	AdjustmentStatusApproved  = "approved"
	AdjustmentStatusRejected  = "rejected"
	AdjustmentStatusCompleted = "completed"
)

const (
	AdjustmentTypeInventoryCount = "inventory_count"
	AdjustmentTypeDamaged        = "damaged"
	AdjustmentTypeExpired        = "expired"
	AdjustmentTypeTheft          = "theft"
	AdjustmentTypeTransferError  = "transfer_error"
	AdjustmentTypeOther          = "other"
)

const (
	AdjustmentReasonDamaged       = "damaged"
	AdjustmentReasonExpired       = "expired"
	AdjustmentReasonCountingError = "counting_error"
	AdjustmentReasonTheft         = "theft"
	AdjustmentReasonOther         = "other"
)

type StockAdjustment struct {
	BaseModel
	AdjustmentNumber string     `db:"adjustment_number" json:"adjustment_number"`
	WarehouseID      string     `db:"warehouse_id" json:"warehouse_id"`
	AdjustmentType   string     `db:"adjustment_type" json:"adjustment_type"`
	Status           string     `db:"status" json:"status"`
	Reason           string     `db:"reason" json:"reason"`
	CreatedBy        *string    `db:"created_by" json:"created_by"`
	ReviewedBy       *string    `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt       *time.Time `db:"reviewed_at" json:"reviewed_at"`
	AppliedAt        *time.Time `db:"applied_at" json:"applied_at"`

	Lines []AdjustmentLine `db:"-" json:"lines"`
}

type AdjustmentLine struct {
	ID             string          `db:"id" json:"id"`
	AdjustmentID   string          `db:"adjustment_id" json:"adjustment_id"`
	LotID          string          `db:"lot_id" json:"lot_id"`
	QuantityBefore int64           `db:"quantity_before" json:"quantity_before"`
	QuantityChange int64           `db:"quantity_change" json:"quantity_change"`
	QuantityAfter  int64           `db:"quantity_after" json:"quantity_after"`
	UnitCost       decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ValueChange    decimal.Decimal `db:"value_change" json:"value_change"`
	Reason         string          `db:"reason" json:"reason"`
	Notes          string          `db:"notes" json:"notes"`
}
