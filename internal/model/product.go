package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	SKU            string           `db:"sku" json:"sku"`
	Name           string           `db:"name" json:"name"`
	Description    *string          `db:"description" json:"description"`
	CostPrice      *decimal.Decimal `db:"cost_price" json:"cost_price"` // Nullable
	Weight         *decimal.Decimal `db:"weight" json:"weight"`         // kg
	Length         *decimal.Decimal `db:"length" json:"length"`         // cm
	Width          *decimal.Decimal `db:"width" json:"width"`
	Height         *decimal.Decimal `db:"height" json:"height"`
	TrackInventory bool             `db:"track_inventory" json:"track_inventory"`
	AllowBackorder bool             `db:"allow_backorder" json:"allow_backorder"`
	IsActive       bool             `db:"is_active" json:"is_active"`
}

// defaultUnitVolume stands in for products with incomplete dimensions.
var defaultUnitVolume = decimal.NewFromFloat(0.01)

var cmPerCubicMeter = decimal.NewFromInt(1000000)

// UnitVolume returns the storage volume of one unit in cubic meters.
func (p *Product) UnitVolume() decimal.Decimal {
	if p.Length == nil || p.Width == nil || p.Height == nil {
		return defaultUnitVolume
	}
	cm3 := p.Length.Mul(*p.Width).Mul(*p.Height)
	if cm3.LessThanOrEqual(decimal.Zero) {
		return defaultUnitVolume
	}
	return cm3.Div(cmPerCubicMeter)
}

// UnitWeight returns the weight of one unit in kilograms, zero when unknown.
func (p *Product) UnitWeight() decimal.Decimal {
	if p.Weight == nil {
		return decimal.Zero
	}
	return *p.Weight
}
