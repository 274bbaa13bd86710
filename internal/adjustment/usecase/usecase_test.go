package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/inventory-service/internal/adjustment"
	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/adjustment/repository"
	"github.com/wareflow/inventory-service/internal/auth"
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
)

type adjHarness struct {
	repo      *repository.MemoryRepository
	stockRepo *ledgerrepo.MemoryRepository
	catalog   *catalogrepo.MemoryRepository
	capRepo   *capacityrepo.MemoryRepository
	ledger    ledger.UseCase
	uc        adjustment.UseCase
}

func newAdjHarness() *adjHarness {
	h := &adjHarness{
		repo:      repository.NewMemoryRepository(),
		stockRepo: ledgerrepo.NewMemoryRepository(),
		catalog:   catalogrepo.NewMemoryRepository(),
		capRepo:   capacityrepo.NewMemoryRepository(),
	}
	capUC := capacityuc.NewCapacityUseCase(h.capRepo, logger.NewNop(), "soft")
	h.ledger = ledgeruc.NewLedgerUseCase(logger.NewNop(), h.stockRepo, h.catalog, capUC, events.NopPublisher{})
	h.uc = NewAdjustmentUseCase(logger.NewNop(), h.repo, h.ledger, h.catalog, capUC, events.NopPublisher{})
	return h
}

// seedProduct registers a 10cm cube, so one unit occupies 0.001 m3.
func (h *adjHarness) seedProduct(id string) {
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

func (h *adjHarness) seedLot(id string, onHand int64, locationID *string) {
	h.stockRepo.SeedLot(model.StockLot{
		BaseModel: model.BaseModel{
			ID:        id,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		ProductID:      "prod-1",
		WarehouseID:    "wh-1",
		LocationID:     locationID,
		OnHandQuantity: onHand,
		UnitCost:       decimal.NewFromInt(5),
		Status:         model.LotStatusActive,
	})
}

func (h *adjHarness) lot(t *testing.T, id string) *model.StockLot {
	t.Helper()
	lot, err := h.stockRepo.GetLot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, lot)
	return lot
}

func TestCreateDraftsAdjustment(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	h.seedLot("lot-b", 40, nil)
	ctx := auth.WithStaffID(context.Background(), "staff-7")

	adj, err := h.uc.Create(ctx, &dto.CreateAdjustmentInput{
		WarehouseID:    "wh-1",
		AdjustmentType: model.AdjustmentTypeInventoryCount,
		Reason:         model.AdjustmentReasonCountingError,
		Lines: []dto.AdjustmentLineInput{
			{LotID: "lot-a", QuantityChange: 10},
			{LotID: "lot-b", QuantityChange: -5, Reason: model.AdjustmentReasonDamaged},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.AdjustmentStatusPending, adj.Status)
	assert.Equal(t, "ADJ"+adj.CreatedAt.Format("20060102")+"0001", adj.AdjustmentNumber)
	require.NotNil(t, adj.CreatedBy)
	assert.Equal(t, "staff-7", *adj.CreatedBy)

	require.Len(t, adj.Lines, 2)
	assert.Equal(t, int64(40), adj.Lines[0].QuantityBefore)
	assert.Equal(t, int64(50), adj.Lines[0].QuantityAfter)
	assert.True(t, adj.Lines[0].ValueChange.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, model.AdjustmentReasonCountingError, adj.Lines[0].Reason, "lines without a reason take the header reason")
	assert.Equal(t, model.AdjustmentReasonDamaged, adj.Lines[1].Reason)
	assert.True(t, adj.Lines[1].ValueChange.Equal(decimal.NewFromInt(-25)))

	lot := h.lot(t, "lot-a")
	assert.Equal(t, int64(40), lot.OnHandQuantity, "drafting touches no stock")
}

func TestCreateValidations(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 10, nil)
	ctx := context.Background()

	base := dto.CreateAdjustmentInput{
		WarehouseID:    "wh-1",
		AdjustmentType: model.AdjustmentTypeOther,
		Reason:         model.AdjustmentReasonOther,
	}

	in := base
	_, err := h.uc.Create(ctx, &in)
	assert.ErrorIs(t, err, adjustment.ErrNoLines)

	in = base
	in.Lines = []dto.AdjustmentLineInput{{LotID: "lot-a", QuantityChange: 0}}
	_, err = h.uc.Create(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	in = base
	in.Lines = []dto.AdjustmentLineInput{{LotID: "lot-missing", QuantityChange: 1}}
	_, err = h.uc.Create(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrLotNotFound)

	in = base
	in.WarehouseID = "wh-other"
	in.Lines = []dto.AdjustmentLineInput{{LotID: "lot-a", QuantityChange: 1}}
	_, err = h.uc.Create(ctx, &in)
	assert.ErrorIs(t, err, adjustment.ErrLotNotInWarehouse)

	in = base
	in.Lines = []dto.AdjustmentLineInput{{LotID: "lot-a", QuantityChange: -11}}
	_, err = h.uc.Create(ctx, &in)
	assert.ErrorIs(t, err, ledger.ErrNegativeStock)
}

func (h *adjHarness) draft(t *testing.T, lines ...dto.AdjustmentLineInput) *model.StockAdjustment {
	t.Helper()
	adj, err := h.uc.Create(context.Background(), &dto.CreateAdjustmentInput{
		WarehouseID:    "wh-1",
		AdjustmentType: model.AdjustmentTypeInventoryCount,
		Reason:         model.AdjustmentReasonCountingError,
		Lines:          lines,
	})
	require.NoError(t, err)
	return adj
}

func TestReviewIsPendingOnly(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	ctx := auth.WithStaffID(context.Background(), "staff-9")

	adj := h.draft(t, dto.AdjustmentLineInput{LotID: "lot-a", QuantityChange: 5})

	approved, err := h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AdjustmentStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "staff-9", *approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)

	_, err = h.uc.Approve(ctx, adj.ID)
	assert.ErrorIs(t, err, adjustment.ErrNotPending)
	_, err = h.uc.Reject(ctx, adj.ID)
	assert.ErrorIs(t, err, adjustment.ErrNotPending)

	other := h.draft(t, dto.AdjustmentLineInput{LotID: "lot-a", QuantityChange: 5})
	rejected, err := h.uc.Reject(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AdjustmentStatusRejected, rejected.Status)

	_, err = h.uc.Approve(ctx, "missing")
	assert.ErrorIs(t, err, adjustment.ErrAdjustmentNotFound)
}

func TestApplyRequiresApproval(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	ctx := context.Background()

	adj := h.draft(t, dto.AdjustmentLineInput{LotID: "lot-a", QuantityChange: 5})
	_, err := h.uc.Apply(ctx, adj.ID)
	assert.ErrorIs(t, err, adjustment.ErrNotApproved)

	_, err = h.uc.Reject(ctx, adj.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, adj.ID)
	assert.ErrorIs(t, err, adjustment.ErrNotApproved)
}

func TestApplyMovesStockAndOccupancy(t *testing.T) {
	h := newAdjHarness()
	h.seedProduct("prod-1")
	h.capRepo.SeedWarehouse(model.Warehouse{
		BaseModel:     model.BaseModel{ID: "wh-1"},
		Code:          "wh-1",
		WarehouseType: model.WarehouseTypeMain,
		TotalCapacity: decimal.NewFromInt(100),
		IsActive:      true,
	})
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: "loc-up"},
		WarehouseID:   "wh-1",
		Code:          "loc-up",
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromInt(1),
		MaxWeight:     decimal.NewFromInt(100),
		CurrentVolume: decimal.NewFromFloat(0.04),
		IsActive:      true,
	})
	h.capRepo.SeedLocation(model.StorageLocation{
		BaseModel:     model.BaseModel{ID: "loc-down"},
		WarehouseID:   "wh-1",
		Code:          "loc-down",
		LocationType:  model.LocationTypeShelf,
		MaxVolume:     decimal.NewFromInt(1),
		MaxWeight:     decimal.NewFromInt(100),
		CurrentVolume: decimal.NewFromFloat(0.04),
		IsActive:      true,
	})

	up := "loc-up"
	down := "loc-down"
	h.seedLot("lot-up", 40, &up)
	h.seedLot("lot-down", 40, &down)
	ctx := context.Background()

	adj := h.draft(t,
		dto.AdjustmentLineInput{LotID: "lot-up", QuantityChange: 10},
		dto.AdjustmentLineInput{LotID: "lot-down", QuantityChange: -15},
	)
	_, err := h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)

	applied, err := h.uc.Apply(ctx, adj.ID)
	require.NoError(t, err)

	assert.Equal(t, model.AdjustmentStatusCompleted, applied.Status)
	assert.NotNil(t, applied.AppliedAt)
	assert.Equal(t, int64(50), h.lot(t, "lot-up").OnHandQuantity)
	assert.Equal(t, int64(25), h.lot(t, "lot-down").OnHandQuantity)

	require.Len(t, applied.Lines, 2)
	assert.Equal(t, int64(50), applied.Lines[0].QuantityAfter)
	assert.Equal(t, int64(25), applied.Lines[1].QuantityAfter)

	locUp, err := h.capRepo.GetLocation(ctx, "loc-up")
	require.NoError(t, err)
	assert.True(t, locUp.CurrentVolume.Equal(decimal.NewFromFloat(0.05)),
		"found stock grows its shelf, got %s", locUp.CurrentVolume)
	locDown, err := h.capRepo.GetLocation(ctx, "loc-down")
	require.NoError(t, err)
	assert.True(t, locDown.CurrentVolume.Equal(decimal.NewFromFloat(0.025)),
		"written-off stock frees its shelf, got %s", locDown.CurrentVolume)

	moves, _, err := h.ledger.ListMovements(ctx, &ledgerdto.MovementFilters{ReferenceID: adj.ID})
	require.NoError(t, err)
	assert.Len(t, moves, 2)
	for _, m := range moves {
		assert.Equal(t, model.MovementAdjustment, m.MovementType)
	}
}

func TestApplyDamagedWriteOffRetiresLot(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	ctx := context.Background()

	adj, err := h.uc.Create(ctx, &dto.CreateAdjustmentInput{
		WarehouseID:    "wh-1",
		AdjustmentType: model.AdjustmentTypeDamaged,
		Reason:         model.AdjustmentReasonDamaged,
		Lines:          []dto.AdjustmentLineInput{{LotID: "lot-a", QuantityChange: -40}},
	})
	require.NoError(t, err)
	_, err = h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, adj.ID)
	require.NoError(t, err)

	lot := h.lot(t, "lot-a")
	assert.Zero(t, lot.OnHandQuantity)
	assert.Equal(t, model.LotStatusDamaged, lot.Status, "an emptied damaged lot leaves circulation")
}

func TestApplyPartialWriteOffKeepsLotActive(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	ctx := context.Background()

	adj, err := h.uc.Create(ctx, &dto.CreateAdjustmentInput{
		WarehouseID:    "wh-1",
		AdjustmentType: model.AdjustmentTypeDamaged,
		Reason:         model.AdjustmentReasonDamaged,
		Lines:          []dto.AdjustmentLineInput{{LotID: "lot-a", QuantityChange: -10}},
	})
	require.NoError(t, err)
	_, err = h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, adj.ID)
	require.NoError(t, err)

	lot := h.lot(t, "lot-a")
	assert.Equal(t, int64(30), lot.OnHandQuantity)
	assert.Equal(t, model.LotStatusActive, lot.Status, "remaining stock keeps selling")
}

func TestApplyTwice(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	ctx := context.Background()

	adj := h.draft(t, dto.AdjustmentLineInput{LotID: "lot-a", QuantityChange: 5})
	_, err := h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)
	_, err = h.uc.Apply(ctx, adj.ID)
	require.NoError(t, err)

	_, err = h.uc.Apply(ctx, adj.ID)
	assert.ErrorIs(t, err, adjustment.ErrAlreadyApplied)
	assert.Equal(t, int64(45), h.lot(t, "lot-a").OnHandQuantity, "the change lands exactly once")
}

func TestApplyFailsWhenStockMovedSinceApproval(t *testing.T) {
	h := newAdjHarness()
	h.seedLot("lot-a", 40, nil)
	h.seedLot("lot-b", 40, nil)
	ctx := context.Background()

	adj := h.draft(t,
		dto.AdjustmentLineInput{LotID: "lot-b", QuantityChange: 5},
		dto.AdjustmentLineInput{LotID: "lot-a", QuantityChange: -30},
	)
	_, err := h.uc.Approve(ctx, adj.ID)
	require.NoError(t, err)

	// Stock leaves the lot between approval and apply.
	_, err = h.ledger.AdjustLines(ctx, []ledgerdto.AdjustInput{
		{LotID: "lot-a", QuantityChange: -30, Reason: "shipped"},
	}, ledgerdto.MovementRef{Type: "manual", ID: "m-1"})
	require.NoError(t, err)

	_, err = h.uc.Apply(ctx, adj.ID)
	require.ErrorIs(t, err, ledger.ErrNegativeStock)

	assert.Equal(t, int64(40), h.lot(t, "lot-b").OnHandQuantity, "no line lands when one fails")

	got, err := h.uc.Get(ctx, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AdjustmentStatusApproved, got.Status, "the document stays retryable")
}
