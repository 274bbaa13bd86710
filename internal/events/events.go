package events

import "time"

const (
	TypeStockReceived        = "StockReceived"
	TypeStockAdjusted        = "StockAdjusted"
	TypeReservationCreated   = "ReservationCreated"
	TypeReservationReleased  = "ReservationReleased"
	TypeReservationAllocated = "ReservationAllocated"
	TypeAdjustmentApplied    = "AdjustmentApplied"
	TypeTransferCompleted    = "TransferCompleted"
	TypeExpirySweepCompleted = "ExpirySweepCompleted"
)

type Event struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type StockPayload struct {
	LotID          string `json:"lot_id"`
	ProductID      string `json:"product_id"`
	WarehouseID    string `json:"warehouse_id"`
	MovementType   string `json:"movement_type"`
	QuantityChange int64  `json:"quantity_change"`
	QuantityAfter  int64  `json:"quantity_after"`
}

type ReservationPayload struct {
	ReservationID     string `json:"reservation_id"`
	ReservationNumber string `json:"reservation_number"`
	ProductID         string `json:"product_id"`
	Status            string `json:"status"`
	Quantity          int64  `json:"quantity"`
	BackorderQuantity int64  `json:"backorder_quantity"`
}

type AdjustmentPayload struct {
	AdjustmentID     string `json:"adjustment_id"`
	AdjustmentNumber string `json:"adjustment_number"`
	WarehouseID      string `json:"warehouse_id"`
	Status           string `json:"status"`
}

type TransferPayload struct {
	TransferID      string `json:"transfer_id"`
	TransferNumber  string `json:"transfer_number"`
	FromWarehouseID string `json:"from_warehouse_id"`
	ToWarehouseID   string `json:"to_warehouse_id"`
	Status          string `json:"status"`
}

type SweepSummaryPayload struct {
	Swept    int64 `json:"swept"`
	Released int64 `json:"released"`
	Failed   int64 `json:"failed"`
}
