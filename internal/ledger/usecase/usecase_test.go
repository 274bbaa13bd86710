package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/inventory-service/internal/capacity"
	capacityrepo "github.com/wareflow/inventory-service/internal/capacity/repository"
	capacityuc "github.com/wareflow/inventory-service/internal/capacity/usecase"
	"github.com/wareflow/inventory-service/internal/catalog"
	catalogrepo "github.com/wareflow/inventory-service/internal/catalog/repository"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	"github.com/wareflow/inventory-service/internal/ledger/dto"
	ledgerrepo "github.com/wareflow/inventory-service/internal/ledger/repository"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
)

type capturePublisher struct {
	mu    sync.Mutex
	types []string
}

func (c *capturePublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, eventType)
}

func (c *capturePublisher) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.types...)
}

type harness struct {
	repo      *ledgerrepo.MemoryRepository
	catalog   *catalogrepo.MemoryRepository
	capRepo   *capacityrepo.MemoryRepository
	publisher *capturePublisher
	uc        ledger.UseCase
}

func newHarness(mode string) *harness {
	h := &harness{
		repo:      ledgerrepo.NewMemoryRepository(),
		catalog:   catalogrepo.NewMemoryRepository(),
		capRepo:   capacityrepo.NewMemoryRepository(),
		publisher: &capturePublisher{},
	}
	capUC := capacityuc.NewCapacityUseCase(h.capRepo, logger.NewNop(), mode)
	h.uc = NewLedgerUseCase(logger.NewNop(), h.repo, h.catalog, capUC, h.publisher)
	return h
}

// seedProduct registers a 10cm cube weighing 0.5kg, so one unit occupies
// 0.001 m3.
func (h *harness) seedProduct(id string) model.Product {
	cost := decimal.NewFromInt(10)
	weight := decimal.NewFromFloat(0.5)
	dim := decimal.NewFromInt(10)
	p := model.Product{
		BaseModel:      model.BaseModel{ID: id},
		SKU:            "SKU-" + id,
		Name:           "Product " + id,
		CostPrice:      &cost,
		Weight:         &weight,
		Length:         &dim,
		Width:          &dim,
		Height:         &dim,
		TrackInventory: true,
		IsActive:       true,
	}
	h.catalog.Put(p)
	return p
}

func (h *harness) seedWarehouse(id string) {
	h.capRepo.SeedWarehouse(model.Warehouse{
		BaseModel:     model.BaseModel{ID: id},
		Code:          id,
		Name:          "Warehouse " + id,
		WarehouseType: model.WarehouseTypeMain,
		TotalCapacity: decimal.NewFromInt(1000),
		IsActive:      true,
	})
}

func (h *harness) seedLocation(id, warehouseID string, maxVolume float64) {
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:    model.BaseModel{ID: id},
		WarehouseID:  warehouseID,
		Code:         id,
		LocationType: model.LocationTypeShelf,
		MaxVolume:    decimal.NewFromFloat(maxVolume),
		MaxWeight:    decimal.NewFromInt(1000),
		IsActive:     true,
	})
}

func (h *harness) seedLot(id, productID, warehouseID string, onHand int64, locationID *string) {
	h.repo.SeedLot(model.StockLot{
		BaseModel: model.BaseModel{
			ID:        id,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		ProductID:      productID,
		WarehouseID:    warehouseID,
		LocationID:     locationID,
		OnHandQuantity: onHand,
		UnitCost:       decimal.NewFromInt(10),
		Status:         model.LotStatusActive,
	})
}

func locationVolume(t *testing.T, h *harness, id string) decimal.Decimal {
	t.Helper()
	loc, err := h.capRepo.GetLocation(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, loc)
	return loc.CurrentVolume
}

func TestReceivePlacesIntoTightestFit(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-roomy", "wh-1", 10)
	h.seedLocation("loc-snug", "wh-1", 0.05)
	ctx := context.Background()

	lot, err := h.uc.Receive(ctx, &dto.ReceiveInput{
		ProductID:   "prod-1",
		WarehouseID: "wh-1",
		Quantity:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), lot.OnHandQuantity)
	assert.True(t, lot.UnitCost.Equal(decimal.NewFromInt(10)), "unit cost defaults from the catalog")
	require.NotNil(t, lot.LocationID)
	assert.Equal(t, "loc-snug", *lot.LocationID, "the tightest location that fits wins")

	vol := locationVolume(t, h, "loc-snug")
	assert.True(t, vol.Equal(decimal.NewFromFloat(0.01)), "10 units occupy 0.01 m3, got %s", vol)

	wh, err := h.capRepo.GetWarehouse(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, wh.UsedCapacity.Equal(decimal.NewFromFloat(0.01)), "warehouse counter follows, got %s", wh.UsedCapacity)

	assert.Contains(t, h.publisher.published(), events.TypeStockReceived)
}

func TestReceivePrefersLocationsHoldingTheProduct(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-snug", "wh-1", 0.05)
	h.seedLocation("loc-roomy", "wh-1", 10)

	roomy := "loc-roomy"
	h.seedLot("lot-existing", "prod-1", "wh-1", 5, &roomy)
	ctx := context.Background()

	batch := "B-2"
	lot, err := h.uc.Receive(ctx, &dto.ReceiveInput{
		ProductID:   "prod-1",
		WarehouseID: "wh-1",
		BatchNumber: &batch,
		Quantity:    10,
	})
	require.NoError(t, err)
	require.NotNil(t, lot.LocationID)
	assert.Equal(t, "loc-roomy", *lot.LocationID, "locations already holding the product are preferred")
}

func TestReceiveRejectsBadProducts(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)

	inactive := h.seedProduct("prod-inactive")
	inactive.IsActive = false
	h.catalog.Put(inactive)

	untracked := h.seedProduct("prod-untracked")
	untracked.TrackInventory = false
	h.catalog.Put(untracked)

	ctx := context.Background()
	base := dto.ReceiveInput{WarehouseID: "wh-1", Quantity: 5}

	in := base
	in.ProductID = "prod-missing"
	_, err := h.uc.Receive(ctx, &in)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	in = base
	in.ProductID = "prod-inactive"
	_, err = h.uc.Receive(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrProductInactive)

	in = base
	in.ProductID = "prod-untracked"
	_, err = h.uc.Receive(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrUntrackedProduct)

	in = base
	in.ProductID = "prod-inactive"
	in.Quantity = 0
	_, err = h.uc.Receive(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestReceiveExplicitLocationHardMode(t *testing.T) {
	h := newHarness(capacity.EnforcementHard)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-tiny", "wh-1", 0.005)
	ctx := context.Background()

	loc := "loc-tiny"
	_, err := h.uc.Receive(ctx, &dto.ReceiveInput{
		ProductID:   "prod-1",
		WarehouseID: "wh-1",
		LocationID:  &loc,
		Quantity:    10, // needs 0.01 m3
	})
	require.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	lots, total, _ := h.repo.FindLots(ctx, &dto.LotFilters{ProductID: "prod-1"})
	assert.Zero(t, total, "rejected receive must not create stock, got %v", lots)
}

func TestReceiveWithNothingFittingStaysUnplaced(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-tiny", "wh-1", 0.005)
	ctx := context.Background()

	lot, err := h.uc.Receive(ctx, &dto.ReceiveInput{
		ProductID:   "prod-1",
		WarehouseID: "wh-1",
		Quantity:    10,
	})
	require.NoError(t, err)
	assert.Nil(t, lot.LocationID, "stock is on hand even when no shelf fits")
	assert.Equal(t, int64(10), lot.OnHandQuantity)
}

func TestReceiveMergeGrowsOccupancy(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-1", "wh-1", 10)
	ctx := context.Background()

	first, err := h.uc.Receive(ctx, &dto.ReceiveInput{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 10})
	require.NoError(t, err)
	second, err := h.uc.Receive(ctx, &dto.ReceiveInput{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 10})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "unbatched receives merge into one lot")
	assert.Equal(t, int64(20), second.OnHandQuantity)
	require.NotNil(t, second.LocationID)
	assert.Equal(t, "loc-1", *second.LocationID)

	vol := locationVolume(t, h, "loc-1")
	assert.True(t, vol.Equal(decimal.NewFromFloat(0.02)), "occupancy counts both receives, got %s", vol)
}

func TestReserveValidatesQuantity(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	_, err := h.uc.Reserve(context.Background(), "lot-x", 0, dto.MovementRef{})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	err = h.uc.ReleaseLines(context.Background(), []dto.LineQuantity{{LotID: "lot-x", Quantity: -1}}, dto.MovementRef{})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	err = h.uc.CommitLines(context.Background(), []dto.LineQuantity{{LotID: "lot-x", Quantity: 0}}, dto.MovementRef{})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestReserveJournalsMovement(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedLot("lot-1", "prod-1", "wh-1", 50, nil)
	ctx := context.Background()

	_, err := h.uc.Reserve(ctx, "lot-1", 20, dto.MovementRef{Type: "order", ID: "ord-9"})
	require.NoError(t, err)

	moves, _, err := h.uc.ListMovements(ctx, &dto.MovementFilters{ReferenceID: "ord-9"})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementReserve, moves[0].MovementType)
	require.NotNil(t, moves[0].ReferenceType)
	assert.Equal(t, "order", *moves[0].ReferenceType)
}

func TestAdjustLinesNotesFallBackToReason(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedLot("lot-1", "prod-1", "wh-1", 50, nil)
	ctx := context.Background()

	_, err := h.uc.AdjustLines(ctx, []dto.AdjustInput{
		{LotID: "lot-1", QuantityChange: -5, Reason: "cycle count"},
	}, dto.MovementRef{Type: "adjustment", ID: "adj-1"})
	require.NoError(t, err)

	moves, _, _ := h.uc.ListMovements(ctx, &dto.MovementFilters{LotID: "lot-1"})
	require.Len(t, moves, 1)
	assert.Equal(t, "cycle count", moves[0].Notes)
	assert.Contains(t, h.publisher.published(), events.TypeStockAdjusted)
}

func TestTransferLinesVacatesSourceOccupancy(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedWarehouse("wh-2")

	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: "loc-src"},
		WarehouseID:   "wh-1",
		Code:          "loc-src",
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromInt(1),
		MaxWeight:     decimal.NewFromInt(1000),
		CurrentVolume: decimal.NewFromFloat(0.05),
		CurrentWeight: decimal.NewFromInt(25),
		IsActive:      true,
	})

	src := "loc-src"
	h.seedLot("lot-src", "prod-1", "wh-1", 50, &src)
	ctx := context.Background()

	dests, err := h.uc.TransferLines(ctx, "wh-2", []dto.LineQuantity{{LotID: "lot-src", Quantity: 20}}, dto.MovementRef{Type: "transfer", ID: "tr-1"})
	require.NoError(t, err)
	require.Len(t, dests, 1)
	assert.Equal(t, "wh-2", dests[0].WarehouseID)
	assert.Equal(t, int64(20), dests[0].OnHandQuantity)

	vol := locationVolume(t, h, "loc-src")
	assert.True(t, vol.Equal(decimal.NewFromFloat(0.03)), "20 units worth of volume freed, got %s", vol)
}

func TestPutAwayAutoPlacement(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-1", "wh-1", 1)
	h.seedLot("lot-1", "prod-1", "wh-1", 10, nil)
	ctx := context.Background()

	lot, err := h.uc.PutAway(ctx, "lot-1", nil)
	require.NoError(t, err)
	require.NotNil(t, lot.LocationID)
	assert.Equal(t, "loc-1", *lot.LocationID)

	vol := locationVolume(t, h, "loc-1")
	assert.True(t, vol.Equal(decimal.NewFromFloat(0.01)))
}

func TestPutAwayMovesOccupancyBetweenLocations(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: "loc-a"},
		WarehouseID:   "wh-1",
		Code:          "loc-a",
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromInt(1),
		MaxWeight:     decimal.NewFromInt(1000),
		CurrentVolume: decimal.NewFromFloat(0.01),
		CurrentWeight: decimal.NewFromInt(5),
		IsActive:      true,
	})
	h.seedLocation("loc-b", "wh-1", 1)

	a := "loc-a"
	h.seedLot("lot-1", "prod-1", "wh-1", 10, &a)
	ctx := context.Background()

	b := "loc-b"
	lot, err := h.uc.PutAway(ctx, "lot-1", &b)
	require.NoError(t, err)
	require.NotNil(t, lot.LocationID)
	assert.Equal(t, "loc-b", *lot.LocationID)

	assert.True(t, locationVolume(t, h, "loc-a").IsZero(), "old slot vacated")
	assert.True(t, locationVolume(t, h, "loc-b").Equal(decimal.NewFromFloat(0.01)), "new slot occupied")
}

func TestPutAwaySameLocationIsNoop(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.seedLocation("loc-1", "wh-1", 1)

	loc := "loc-1"
	h.seedLot("lot-1", "prod-1", "wh-1", 10, &loc)
	ctx := context.Background()

	lot, err := h.uc.PutAway(ctx, "lot-1", &loc)
	require.NoError(t, err)
	assert.Equal(t, "loc-1", *lot.LocationID)
	assert.True(t, locationVolume(t, h, "loc-1").IsZero(), "re-placing in the same slot must not double count")
}

func TestPutAwayKeepsPlacementWhenNothingFits(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedProduct("prod-1")
	h.seedWarehouse("wh-1")
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: "loc-a"},
		WarehouseID:   "wh-1",
		Code:          "loc-a",
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromFloat(0.01),
		MaxWeight:     decimal.NewFromInt(1000),
		CurrentVolume: decimal.NewFromFloat(0.01),
		IsActive:      true,
	})

	a := "loc-a"
	h.seedLot("lot-1", "prod-1", "wh-1", 10, &a)
	ctx := context.Background()

	lot, err := h.uc.PutAway(ctx, "lot-1", nil)
	require.NoError(t, err)
	require.NotNil(t, lot.LocationID)
	assert.Equal(t, "loc-a", *lot.LocationID, "a full house keeps the current placement")
}

func TestListLowStock(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	h.seedLot("lot-low", "prod-1", "wh-1", 3, nil)
	h.seedLot("lot-high", "prod-1", "wh-1", 500, nil)

	expired := model.StockLot{
		BaseModel:      model.BaseModel{ID: "lot-expired", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		ProductID:      "prod-1",
		WarehouseID:    "wh-1",
		OnHandQuantity: 1,
		Status:         model.LotStatusExpired,
	}
	h.repo.SeedLot(expired)

	lots, total, err := h.uc.ListLowStock(context.Background(), 10, "wh-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "lot-low", lots[0].ID, "only active lots count as low stock")
}

func TestGetLotNotFound(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	_, err := h.uc.GetLot(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrLotNotFound)
}

func TestMarkExpiredLotsCount(t *testing.T) {
	h := newHarness(capacity.EnforcementSoft)
	past := time.Now().Add(-time.Hour)

	lot := model.StockLot{
		BaseModel:      model.BaseModel{ID: "lot-1", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		ProductID:      "prod-1",
		WarehouseID:    "wh-1",
		OnHandQuantity: 5,
		ExpiryDate:     &past,
		Status:         model.LotStatusActive,
	}
	h.repo.SeedLot(lot)

	n, err := h.uc.MarkExpiredLots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
