package dto

type TransferLineInput struct {
	SourceLotID string
	Quantity    int64
}

type CreateTransferInput struct {
	FromWarehouseID string
	ToWarehouseID   string
	Priority        string
	Notes           string
	Lines           []TransferLineInput
}

type TransferFilters struct {
	FromWarehouseID string
	ToWarehouseID   string
	Status          string
	Priority        string
	Page            int
	PageSize        int
}
