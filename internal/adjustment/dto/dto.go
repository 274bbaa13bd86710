package dto

type AdjustmentLineInput struct {
	LotID          string
	QuantityChange int64
	Reason         string
	Notes          string
}

type CreateAdjustmentInput struct {
	WarehouseID    string
	AdjustmentType string
	Reason         string
	Lines          []AdjustmentLineInput
}

type AdjustmentFilters struct {
	WarehouseID    string
	Status         string
	AdjustmentType string
	Page           int
	PageSize       int
}
