package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/inventory-service/internal/auth"
	"github.com/wareflow/inventory-service/internal/capacity"
	capacityrepo "github.com/wareflow/inventory-service/internal/capacity/repository"
	capacityuc "github.com/wareflow/inventory-service/internal/capacity/usecase"
	catalogrepo "github.com/wareflow/inventory-service/internal/catalog/repository"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/ledger"
	ledgerdto "github.com/wareflow/inventory-service/internal/ledger/dto"
	ledgerrepo "github.com/wareflow/inventory-service/internal/ledger/repository"
	ledgeruc "github.com/wareflow/inventory-service/internal/ledger/usecase"
	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/transfer"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
	"github.com/wareflow/inventory-service/internal/transfer/repository"
)

type trHarness struct {
	repo      *repository.MemoryRepository
	stockRepo *ledgerrepo.MemoryRepository
	catalog   *catalogrepo.MemoryRepository
	capRepo   *capacityrepo.MemoryRepository
	ledger    ledger.UseCase
	uc        transfer.UseCase
}

func newTrHarness() *trHarness {
	h := &trHarness{
		repo:      repository.NewMemoryRepository(),
		stockRepo: ledgerrepo.NewMemoryRepository(),
		catalog:   catalogrepo.NewMemoryRepository(),
		capRepo:   capacityrepo.NewMemoryRepository(),
	}
	capUC := capacityuc.NewCapacityUseCase(h.capRepo, logger.NewNop(), "soft")
	h.ledger = ledgeruc.NewLedgerUseCase(logger.NewNop(), h.stockRepo, h.catalog, capUC, events.NopPublisher{})
	h.uc = NewTransferUseCase(logger.NewNop(), h.repo, h.ledger, h.catalog, capUC, events.NopPublisher{})

	h.capRepo.SeedWarehouse(model.Warehouse{
		BaseModel:     model.BaseModel{ID: "wh-1"},
		Code:          "wh-1",
		WarehouseType: model.WarehouseTypeMain,
		TotalCapacity: decimal.NewFromInt(100),
		IsActive:      true,
	})
	h.capRepo.SeedWarehouse(model.Warehouse{
		BaseModel:     model.BaseModel{ID: "wh-2"},
		Code:          "wh-2",
		WarehouseType: model.WarehouseTypeRegional,
		TotalCapacity: decimal.NewFromInt(100),
		IsActive:      true,
	})
	return h
}

// seedProduct registers a 10cm cube, so one unit occupies 0.001 m3.
func (h *trHarness) seedProduct(id string) {
	dim := decimal.NewFromInt(10)
	weight := decimal.NewFromFloat(0.5)
	h.catalog.Put(model.Product{
		BaseModel:      model.BaseModel{ID: id},
		SKU:            "SKU-" + id,
		Name:           "Product " + id,
		Weight:         &weight,
		Length:         &dim,
		Width:          &dim,
		Height:         &dim,
		TrackInventory: true,
		IsActive:       true,
	})
}

func (h *trHarness) seedLot(id, warehouseID string, onHand int64, batch *string, locationID *string) {
	h.stockRepo.SeedLot(model.StockLot{
		BaseModel: model.BaseModel{
			ID:        id,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		ProductID:      "prod-1",
		WarehouseID:    warehouseID,
		LocationID:     locationID,
		BatchNumber:    batch,
		OnHandQuantity: onHand,
		UnitCost:       decimal.NewFromFloat(4.5),
		Status:         model.LotStatusActive,
	})
}

func (h *trHarness) seedLocation(id, warehouseID string, currentVolume float64) {
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: id},
		WarehouseID:   warehouseID,
		Code:          id,
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromInt(1),
		MaxWeight:     decimal.NewFromInt(100),
		CurrentVolume: decimal.NewFromFloat(currentVolume),
		IsActive:      true,
	})
}

func (h *trHarness) lot(t *testing.T, id string) *model.StockLot {
	t.Helper()
	lot, err := h.stockRepo.GetLot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, lot)
	return lot
}

func (h *trHarness) destLot(t *testing.T, warehouseID string) *model.StockLot {
	t.Helper()
	lots, _, err := h.stockRepo.FindLots(context.Background(), &ledgerdto.LotFilters{WarehouseID: warehouseID})
	require.NoError(t, err)
	require.Len(t, lots, 1, "expected exactly one lot in %s", warehouseID)
	return &lots[0]
}

func TestCreateDraftsTransfer(t *testing.T) {
	h := newTrHarness()
	batch := "B-7"
	h.seedLot("lot-src", "wh-1", 50, &batch, nil)
	ctx := auth.WithStaffID(context.Background(), "staff-3")

	tr, err := h.uc.Create(ctx, &dto.CreateTransferInput{
		FromWarehouseID: "wh-1",
		ToWarehouseID:   "wh-2",
		Lines:           []dto.TransferLineInput{{SourceLotID: "lot-src", Quantity: 20}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransferStatusPending, tr.Status)
	assert.Equal(t, model.TransferPriorityNormal, tr.Priority, "priority defaults to normal")
	assert.Equal(t, "TR"+tr.CreatedAt.Format("20060102")+"0001", tr.TransferNumber)
	require.NotNil(t, tr.RequestedBy)
	assert.Equal(t, "staff-3", *tr.RequestedBy)

	require.Len(t, tr.Lines, 1)
	line := tr.Lines[0]
	assert.Equal(t, "prod-1", line.ProductID, "lines carry the lot's product")
	assert.True(t, line.UnitCost.Equal(decimal.NewFromFloat(4.5)))
	require.NotNil(t, line.BatchNumber)
	assert.Equal(t, "B-7", *line.BatchNumber)
	assert.Equal(t, model.TransferLineStatusPending, line.Status)

	assert.Equal(t, int64(50), h.lot(t, "lot-src").OnHandQuantity, "drafting touches no stock")
}

func TestCreateValidations(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 10, nil, nil)
	h.seedLot("lot-elsewhere", "wh-2", 10, nil, nil)
	ctx := context.Background()

	line := []dto.TransferLineInput{{SourceLotID: "lot-src", Quantity: 5}}

	_, err := h.uc.Create(ctx, &dto.CreateTransferInput{FromWarehouseID: "wh-1", ToWarehouseID: "wh-1", Lines: line})
	assert.ErrorIs(t, err, transfer.ErrSameWarehouse)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{FromWarehouseID: "wh-1", ToWarehouseID: "wh-2"})
	assert.ErrorIs(t, err, transfer.ErrNoLines)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{FromWarehouseID: "wh-ghost", ToWarehouseID: "wh-2", Lines: line})
	assert.ErrorIs(t, err, capacity.ErrWarehouseNotFound)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{
		FromWarehouseID: "wh-1", ToWarehouseID: "wh-2",
		Lines: []dto.TransferLineInput{{SourceLotID: "lot-src", Quantity: 0}},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{
		FromWarehouseID: "wh-1", ToWarehouseID: "wh-2",
		Lines: []dto.TransferLineInput{{SourceLotID: "lot-missing", Quantity: 5}},
	})
	assert.ErrorIs(t, err, ledger.ErrLotNotFound)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{
		FromWarehouseID: "wh-1", ToWarehouseID: "wh-2",
		Lines: []dto.TransferLineInput{{SourceLotID: "lot-elsewhere", Quantity: 5}},
	})
	assert.ErrorIs(t, err, transfer.ErrLotNotInSource)

	_, err = h.uc.Create(ctx, &dto.CreateTransferInput{
		FromWarehouseID: "wh-1", ToWarehouseID: "wh-2",
		Lines: []dto.TransferLineInput{{SourceLotID: "lot-src", Quantity: 25}},
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

func (h *trHarness) draft(t *testing.T, qty int64) *model.StockTransfer {
	t.Helper()
	tr, err := h.uc.Create(context.Background(), &dto.CreateTransferInput{
		FromWarehouseID: "wh-1",
		ToWarehouseID:   "wh-2",
		Lines:           []dto.TransferLineInput{{SourceLotID: "lot-src", Quantity: qty}},
	})
	require.NoError(t, err)
	return tr
}

func TestApproveIsPendingOnly(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := auth.WithStaffID(context.Background(), "staff-5")

	tr := h.draft(t, 20)

	approved, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "staff-5", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	_, err = h.uc.Approve(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrNotPending)

	_, err = h.uc.Approve(ctx, "missing")
	assert.ErrorIs(t, err, transfer.ErrTransferNotFound)
}

func TestCancel(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 20)

	cancelled, err := h.uc.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCancelled, cancelled.Status)

	// Cancelling again is a no-op.
	again, err := h.uc.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCancelled, again.Status)

	_, err = h.uc.Apply(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrNotApproved)
}

func TestCancelApprovedTransfer(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 20)
	_, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)

	cancelled, err := h.uc.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCancelled, cancelled.Status, "approved but unapplied transfers can still be pulled")
}

func TestApplyMovesStock(t *testing.T) {
	h := newTrHarness()
	h.seedProduct("prod-1")
	h.seedLocation("loc-dst", "wh-2", 0)
	batch := "B-7"
	h.seedLot("lot-src", "wh-1", 50, &batch, nil)
	ctx := auth.WithStaffID(context.Background(), "staff-2")

	tr := h.draft(t, 20)
	_, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)

	applied, err := h.uc.Apply(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TransferStatusCompleted, applied.Status)
	assert.NotNil(t, applied.CompletedAt)
	require.NotNil(t, applied.ReceivedBy)
	assert.Equal(t, "staff-2", *applied.ReceivedBy)
	require.Len(t, applied.Lines, 1)
	assert.Equal(t, model.TransferLineStatusReceived, applied.Lines[0].Status)

	src := h.lot(t, "lot-src")
	assert.Equal(t, int64(30), src.OnHandQuantity)

	dst := h.destLot(t, "wh-2")
	assert.Equal(t, int64(20), dst.OnHandQuantity)
	assert.True(t, dst.UnitCost.Equal(decimal.NewFromFloat(4.5)), "cost travels with the stock")
	require.NotNil(t, dst.BatchNumber)
	assert.Equal(t, "B-7", *dst.BatchNumber)
	require.NotNil(t, dst.LocationID)
	assert.Equal(t, "loc-dst", *dst.LocationID, "arrivals are put away on arrival")

	loc, err := h.capRepo.GetLocation(ctx, "loc-dst")
	require.NoError(t, err)
	assert.True(t, loc.CurrentVolume.Equal(decimal.NewFromFloat(0.02)),
		"20 arriving units occupy 0.02 m3, got %s", loc.CurrentVolume)

	moves, _, err := h.ledger.ListMovements(ctx, &ledgerdto.MovementFilters{ReferenceID: tr.ID})
	require.NoError(t, err)
	types := make([]string, 0, len(moves))
	for _, m := range moves {
		types = append(types, m.MovementType)
	}
	assert.ElementsMatch(t, []string{model.MovementTransferOut, model.MovementTransferIn}, types)
}

func TestApplyMergesIntoPlacedDestinationLot(t *testing.T) {
	h := newTrHarness()
	h.seedProduct("prod-1")
	h.seedLocation("loc-dst", "wh-2", 0.005)
	batch := "B-7"
	dstLoc := "loc-dst"
	h.seedLot("lot-src", "wh-1", 50, &batch, nil)
	h.seedLot("lot-dst", "wh-2", 5, &batch, &dstLoc)
	ctx := context.Background()

	tr := h.draft(t, 20)
	_, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, tr.ID)
	require.NoError(t, err)

	dst := h.lot(t, "lot-dst")
	assert.Equal(t, int64(25), dst.OnHandQuantity, "same batch merges into the existing lot")
	require.NotNil(t, dst.LocationID)
	assert.Equal(t, "loc-dst", *dst.LocationID)

	loc, err := h.capRepo.GetLocation(ctx, "loc-dst")
	require.NoError(t, err)
	assert.True(t, loc.CurrentVolume.Equal(decimal.NewFromFloat(0.025)),
		"the occupied slot grows by the arriving volume, got %s", loc.CurrentVolume)
}

func TestApplyRequiresApproval(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 20)
	_, err := h.uc.Apply(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrNotApproved)
	assert.Equal(t, int64(50), h.lot(t, "lot-src").OnHandQuantity)
}

func TestApplyTwice(t *testing.T) {
	h := newTrHarness()
	h.seedProduct("prod-1")
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 20)
	_, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, tr.ID)
	require.NoError(t, err)

	_, err = h.uc.Apply(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrAlreadyApplied)
	assert.Equal(t, int64(30), h.lot(t, "lot-src").OnHandQuantity, "stock moves exactly once")
}

func TestApplyConservesTotalStock(t *testing.T) {
	h := newTrHarness()
	h.seedProduct("prod-1")
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 35)
	_, err := h.uc.Approve(ctx, tr.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, tr.ID)
	require.NoError(t, err)

	lots, _, err := h.stockRepo.FindLots(ctx, &ledgerdto.LotFilters{ProductID: "prod-1"})
	require.NoError(t, err)
	var total int64
	for _, lot := range lots {
		total += lot.OnHandQuantity
	}
	assert.Equal(t, int64(50), total, "a transfer never creates or destroys stock")
}

func TestGetAttachesLines(t *testing.T) {
	h := newTrHarness()
	h.seedLot("lot-src", "wh-1", 50, nil, nil)
	ctx := context.Background()

	tr := h.draft(t, 20)

	got, err := h.uc.Get(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "lot-src", got.Lines[0].SourceLotID)

	_, err = h.uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, transfer.ErrTransferNotFound)
}
