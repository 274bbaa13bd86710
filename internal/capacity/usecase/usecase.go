package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wareflow/inventory-service/internal/capacity"
	"github.com/wareflow/inventory-service/internal/capacity/dto"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"go.uber.org/zap"
)

type capacityUseCase struct {
	repo   capacity.Repository
	logger logger.ZapLogger
	mode   string
}

func NewCapacityUseCase(repo capacity.Repository, logger logger.ZapLogger, mode string) capacity.UseCase {
	if mode != capacity.EnforcementHard {
		mode = capacity.EnforcementSoft
	}
	return &capacityUseCase{
		repo:   repo,
		logger: logger,
		mode:   mode,
	}
}

func fits(loc *model.StorageLocation, volume, weight decimal.Decimal) bool {
	return volume.LessThanOrEqual(loc.AvailableVolume()) && weight.LessThanOrEqual(loc.AvailableWeight())
}

func (u *capacityUseCase) CanPlace(ctx context.Context, locationID string, volume, weight decimal.Decimal) error {
	loc, err := u.repo.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if loc == nil {
		return fmt.Errorf("location %s: %w", locationID, capacity.ErrLocationNotFound)
	}
	if !loc.IsActive {
		return fmt.Errorf("location %s is inactive: %w", loc.Code, capacity.ErrLocationNotFound)
	}

	if fits(loc, volume, weight) {
		return nil
	}
	if u.mode == capacity.EnforcementHard {
		return fmt.Errorf("location %s: %w", loc.Code, capacity.ErrCapacityExceeded)
	}

	u.logger.Warn("placement exceeds location capacity",
		zap.String("location", loc.Code),
		zap.String("volume", volume.String()),
		zap.String("available_volume", loc.AvailableVolume().String()),
	)
	return nil
}

func (u *capacityUseCase) FindBestLocation(ctx context.Context, warehouseID string, volume, weight decimal.Decimal, preferred []string) (*model.StorageLocation, error) {
	candidates, err := u.repo.CandidateLocations(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	preferredSet := make(map[string]bool, len(preferred))
	for _, id := range preferred {
		preferredSet[id] = true
	}

	// Candidates come tightest first, so the first hit in either pass is
	// the snuggest slot that still fits.
	for i := range candidates {
		if preferredSet[candidates[i].ID] && fits(&candidates[i], volume, weight) {
			return &candidates[i], nil
		}
	}
	for i := range candidates {
		if fits(&candidates[i], volume, weight) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (u *capacityUseCase) OnStockPlaced(ctx context.Context, locationID string, volume, weight decimal.Decimal) error {
	loc, err := u.repo.ApplyOccupancy(ctx, locationID, volume, weight, u.mode == capacity.EnforcementHard)
	if err != nil {
		return err
	}
	if loc.CurrentVolume.GreaterThan(loc.MaxVolume) || loc.CurrentWeight.GreaterThan(loc.MaxWeight) {
		u.logger.Warn("location over capacity",
			zap.String("location", loc.Code),
			zap.String("current_volume", loc.CurrentVolume.String()),
			zap.String("max_volume", loc.MaxVolume.String()),
		)
	}
	return nil
}

func (u *capacityUseCase) OnStockRemoved(ctx context.Context, locationID string, volume, weight decimal.Decimal) error {
	_, err := u.repo.ApplyOccupancy(ctx, locationID, volume.Neg(), weight.Neg(), false)
	return err
}

func (u *capacityUseCase) GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error) {
	wh, err := u.repo.GetWarehouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse %s: %w", id, capacity.ErrWarehouseNotFound)
	}
	return wh, nil
}

func (u *capacityUseCase) FindLocations(ctx context.Context, filters *dto.LocationFilters) ([]model.StorageLocation, int, error) {
	return u.repo.FindLocations(ctx, filters)
}

var hundred = decimal.NewFromInt(100)

func (u *capacityUseCase) WarehouseOccupancy(ctx context.Context, warehouseID string) (*dto.WarehouseOccupancy, error) {
	wh, err := u.GetWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	locations, total, err := u.repo.FindLocations(ctx, &dto.LocationFilters{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	full := 0
	for _, loc := range locations {
		if loc.IsFull {
			full++
		}
	}

	occ := &dto.WarehouseOccupancy{
		WarehouseID:       wh.ID,
		Code:              wh.Code,
		TotalCapacity:     wh.TotalCapacity,
		UsedCapacity:      wh.UsedCapacity,
		AvailableCapacity: wh.TotalCapacity.Sub(wh.UsedCapacity),
		TotalLocations:    total,
		FullLocations:     full,
	}
	if wh.TotalCapacity.IsPositive() {
		occ.UtilizationPct = wh.UsedCapacity.Div(wh.TotalCapacity).Mul(hundred).Round(2)
	}
	return occ, nil
}

func (u *capacityUseCase) LocationOccupancy(ctx context.Context, locationID string) (*dto.LocationOccupancy, error) {
	loc, err := u.repo.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", locationID, capacity.ErrLocationNotFound)
	}

	occ := &dto.LocationOccupancy{
		LocationID:      loc.ID,
		Code:            loc.Code,
		MaxVolume:       loc.MaxVolume,
		CurrentVolume:   loc.CurrentVolume,
		AvailableVolume: loc.AvailableVolume(),
		MaxWeight:       loc.MaxWeight,
		CurrentWeight:   loc.CurrentWeight,
		AvailableWeight: loc.AvailableWeight(),
		IsFull:          loc.IsFull,
	}
	if loc.MaxVolume.IsPositive() {
		occ.UtilizationPct = loc.CurrentVolume.Div(loc.MaxVolume).Mul(hundred).Round(2)
	}
	return occ, nil
}
