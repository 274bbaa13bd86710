package dto

import "github.com/shopspring/decimal"

type LocationFilters struct {
	WarehouseID   string
	LocationType  string
	IsActive      *bool
	OnlyAvailable bool // excludes full locations
	Page          int
	PageSize      int
}

type WarehouseOccupancy struct {
	WarehouseID       string          `json:"warehouse_id"`
	Code              string          `json:"code"`
	TotalCapacity     decimal.Decimal `json:"total_capacity"`
	UsedCapacity      decimal.Decimal `json:"used_capacity"`
	AvailableCapacity decimal.Decimal `json:"available_capacity"`
	UtilizationPct    decimal.Decimal `json:"utilization_pct"`
	TotalLocations    int             `json:"total_locations"`
	FullLocations     int             `json:"full_locations"`
}

type LocationOccupancy struct {
	LocationID      string          `json:"location_id"`
	Code            string          `json:"code"`
	MaxVolume       decimal.Decimal `json:"max_volume"`
	CurrentVolume   decimal.Decimal `json:"current_volume"`
	AvailableVolume decimal.Decimal `json:"available_volume"`
	MaxWeight       decimal.Decimal `json:"max_weight"`
	CurrentWeight   decimal.Decimal `json:"current_weight"`
	AvailableWeight decimal.Decimal `json:"available_weight"`
	UtilizationPct  decimal.Decimal `json:"utilization_pct"`
	IsFull          bool            `json:"is_full"`
}
