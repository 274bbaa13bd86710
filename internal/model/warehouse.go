package model

import "github.com/shopspring/decimal"

const (
	WarehouseTypeMain        = "main"
	WarehouseTypeRegional    = "regional"
	WarehouseTypeStore       = "store"
	WarehouseTypeFulfillment = "fulfillment"
	WarehouseTypeColdStorage = "cold_storage"
)

const (
	LocationTypeShelf  = "shelf"
	LocationTypeBin    = "bin"
	LocationTypePallet = "pallet"
	LocationTypeFloor  = "floor"
	LocationTypeRack   = "rack"
	LocationTypeBulk   = "bulk"
)

type Warehouse struct {
	BaseModel
	Code          string          `db:"code" json:"code"`
	Name          string          `db:"name" json:"name"`
	WarehouseType string          `db:"warehouse_type" json:"warehouse_type"`
	TotalCapacity decimal.Decimal `db:"total_capacity" json:"total_capacity"` // m3
	UsedCapacity  decimal.Decimal `db:"used_capacity" json:"used_capacity"`
	IsActive      bool            `db:"is_active" json:"is_active"`
}

type StorageLocation struct {
	BaseModel
	WarehouseID   string          `db:"warehouse_id" json:"warehouse_id"`
	Code          string          `db:"code" json:"code"`
	Name          string          `db:"name" json:"name"`
	LocationType  string          `db:"location_type" json:"location_type"`
	MaxVolume     decimal.Decimal `db:"max_volume" json:"max_volume"` // m3
	MaxWeight     decimal.Decimal `db:"max_weight" json:"max_weight"` // kg
	CurrentVolume decimal.Decimal `db:"current_volume" json:"current_volume"`
	CurrentWeight decimal.Decimal `db:"current_weight" json:"current_weight"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	IsFull        bool            `db:"is_full" json:"is_full"` // Recomputed on every occupancy change
}

func (s *StorageLocation) AvailableVolume() decimal.Decimal {
	return s.MaxVolume.Sub(s.CurrentVolume)
}

func (s *StorageLocation) AvailableWeight() decimal.Decimal {
	return s.MaxWeight.Sub(s.CurrentWeight)
}

// ComputeFull refreshes the full flag after an occupancy change. A location
// is full when either capacity axis is at or over its maximum.
func (s *StorageLocation) ComputeFull() {
	s.IsFull = s.CurrentVolume.GreaterThanOrEqual(s.MaxVolume) ||
		s.CurrentWeight.GreaterThanOrEqual(s.MaxWeight)
}
