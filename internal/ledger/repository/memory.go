package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wareflow/inventory-service/internal/ledger"
	"github.com/wareflow/inventory-service/internal/ledger/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

// MemoryRepository keeps lots and movements in process memory behind a single
// mutex. Batch operations validate every line against scratch copies before
// anything is written back, so a failed batch leaves the store untouched.
type MemoryRepository struct {
	mu        sync.Mutex
	lots      map[string]*model.StockLot
	movements []model.StockMovement
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		lots: make(map[string]*model.StockLot),
	}
}

// SeedLot inserts or replaces a lot, recomputing its derived fields.
func (r *MemoryRepository) SeedLot(lot model.StockLot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot.Recalculate()
	r.lots[lot.ID] = &lot
}

func (r *MemoryRepository) GetLot(ctx context.Context, id string) (*model.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lot, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	cp := *lot
	return &cp, nil
}

func (r *MemoryRepository) FindLots(ctx context.Context, f *dto.LotFilters) ([]model.StockLot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StockLot, 0)
	for _, lot := range r.lots {
		if f.ProductID != "" && lot.ProductID != f.ProductID {
			continue
		}
		if f.WarehouseID != "" && lot.WarehouseID != f.WarehouseID {
			continue
		}
		if f.LocationID != "" && (lot.LocationID == nil || *lot.LocationID != f.LocationID) {
			continue
		}
		if f.Status != "" && lot.Status != f.Status {
			continue
		}
		if f.BatchNumber != "" && (lot.BatchNumber == nil || *lot.BatchNumber != f.BatchNumber) {
			continue
		}
		if f.LowStockAt != nil && lot.AvailableQuantity > *f.LowStockAt {
			continue
		}
		if f.ExpiringBefore != nil && (lot.ExpiryDate == nil || lot.ExpiryDate.After(*f.ExpiringBefore)) {
			continue
		}
		matched = append(matched, *lot)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	if f.PageSize > 0 {
		start := (f.Page - 1) * f.PageSize
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *MemoryRepository) AvailableLots(ctx context.Context, productID string, warehouseID *string) ([]model.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StockLot, 0)
	for _, lot := range r.lots {
		if lot.ProductID != productID {
			continue
		}
		if lot.Status != model.LotStatusActive || lot.AvailableQuantity <= 0 {
			continue
		}
		if warehouseID != nil && *warehouseID != "" && lot.WarehouseID != *warehouseID {
			continue
		}
		matched = append(matched, *lot)
	}

	sortFEFO(matched)
	return matched, nil
}

// sortFEFO orders lots soonest expiry first, lots without expiry last, ties
// broken by age then id.
func sortFEFO(lots []model.StockLot) {
	sort.Slice(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// scratch clones the lots the given ids point at, failing on the first
// missing id.
func (r *MemoryRepository) scratch(ids []string) (map[string]*model.StockLot, error) {
	out := make(map[string]*model.StockLot, len(ids))
	for _, id := range ids {
		if out[id] != nil {
			continue
		}
		lot, ok := r.lots[id]
		if !ok {
			return nil, fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
		}
		cp := *lot
		out[id] = &cp
	}
	return out, nil
}

func (r *MemoryRepository) commitScratch(scratch map[string]*model.StockLot, movements []*model.StockMovement) {
	now := time.Now()
	for id, lot := range scratch {
		lot.Recalculate()
		lot.UpdatedAt = now
		r.lots[id] = lot
	}
	for _, m := range movements {
		r.movements = append(r.movements, *m)
	}
}

func (r *MemoryRepository) Reserve(ctx context.Context, op dto.StockOperation) (*model.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scratch, err := r.scratch([]string{op.LotID})
	if err != nil {
		return nil, err
	}
	lot := scratch[op.LotID]

	if lot.Status != model.LotStatusActive {
		return nil, fmt.Errorf("lot %s is %s: %w", lot.ID, lot.Status, ledger.ErrInsufficientStock)
	}
	if op.Quantity > lot.AvailableQuantity {
		return nil, fmt.Errorf("lot %s has %d available, want %d: %w",
			lot.ID, lot.AvailableQuantity, op.Quantity, ledger.ErrInsufficientStock)
	}

	before := lot.ReservedQuantity
	lot.ReservedQuantity += op.Quantity
	completeMovement(op.Movement, lot, before, lot.ReservedQuantity)

	r.commitScratch(scratch, []*model.StockMovement{op.Movement})
	cp := *lot
	return &cp, nil
}

func (r *MemoryRepository) ReleaseBatch(ctx context.Context, ops []dto.StockOperation) error {
	if len(ops) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	scratch, err := r.scratch(ids)
	if err != nil {
		return err
	}

	movements := make([]*model.StockMovement, 0, len(ops))
	for _, op := range ops {
		lot := scratch[op.LotID]
		if op.Quantity > lot.ReservedQuantity {
			return fmt.Errorf("lot %s has %d reserved, want to release %d: %w",
				lot.ID, lot.ReservedQuantity, op.Quantity, ledger.ErrInvalidReleaseQuantity)
		}
		before := lot.ReservedQuantity
		lot.ReservedQuantity -= op.Quantity
		completeMovement(op.Movement, lot, before, lot.ReservedQuantity)
		movements = append(movements, op.Movement)
	}

	r.commitScratch(scratch, movements)
	return nil
}

func (r *MemoryRepository) CommitBatch(ctx context.Context, ops []dto.StockOperation) error {
	if len(ops) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	scratch, err := r.scratch(ids)
	if err != nil {
		return err
	}

	movements := make([]*model.StockMovement, 0, len(ops))
	for _, op := range ops {
		lot := scratch[op.LotID]
		if op.Quantity > lot.ReservedQuantity || op.Quantity > lot.OnHandQuantity {
			return fmt.Errorf("lot %s has %d reserved / %d on hand, want to commit %d: %w",
				lot.ID, lot.ReservedQuantity, lot.OnHandQuantity, op.Quantity, ledger.ErrInvalidCommitQuantity)
		}
		before := lot.OnHandQuantity
		lot.OnHandQuantity -= op.Quantity
		lot.ReservedQuantity -= op.Quantity
		completeMovement(op.Movement, lot, before, lot.OnHandQuantity)
		movements = append(movements, op.Movement)
	}

	r.commitScratch(scratch, movements)
	return nil
}

func (r *MemoryRepository) findByBatchLocked(productID, warehouseID string, batchNumber *string) *model.StockLot {
	for _, lot := range r.lots {
		if lot.ProductID != productID || lot.WarehouseID != warehouseID {
			continue
		}
		if batchNumber == nil || *batchNumber == "" {
			if lot.BatchNumber == nil || *lot.BatchNumber == "" {
				return lot
			}
			continue
		}
		if lot.BatchNumber != nil && *lot.BatchNumber == *batchNumber {
			return lot
		}
	}
	return nil
}

func (r *MemoryRepository) Receive(ctx context.Context, candidate *model.StockLot, qty int64, movement *model.StockMovement) (*model.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.findByBatchLocked(candidate.ProductID, candidate.WarehouseID, candidate.BatchNumber)
	if existing != nil {
		cp := *existing
		before := cp.OnHandQuantity
		cp.OnHandQuantity += qty
		completeMovement(movement, &cp, before, cp.OnHandQuantity)
		r.commitScratch(map[string]*model.StockLot{cp.ID: &cp}, []*model.StockMovement{movement})
		out := cp
		return &out, nil
	}

	cp := *candidate
	cp.OnHandQuantity = qty
	completeMovement(movement, &cp, 0, qty)
	r.commitScratch(map[string]*model.StockLot{cp.ID: &cp}, []*model.StockMovement{movement})
	out := cp
	return &out, nil
}

func (r *MemoryRepository) AdjustBatch(ctx context.Context, ops []dto.AdjustOperation) ([]model.StockLot, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.LotID
	}
	scratch, err := r.scratch(ids)
	if err != nil {
		return nil, err
	}

	movements := make([]*model.StockMovement, 0, len(ops))
	updated := make([]model.StockLot, 0, len(ops))
	for _, op := range ops {
		lot := scratch[op.LotID]
		if lot.OnHandQuantity+op.QuantityChange < 0 {
			return nil, fmt.Errorf("lot %s has %d on hand, change %d: %w",
				lot.ID, lot.OnHandQuantity, op.QuantityChange, ledger.ErrNegativeStock)
		}
		before := lot.OnHandQuantity
		lot.OnHandQuantity += op.QuantityChange
		if op.NewStatus != "" {
			lot.Status = op.NewStatus
		}
		completeMovement(op.Movement, lot, before, lot.OnHandQuantity)
		movements = append(movements, op.Movement)
		lot.Recalculate()
		updated = append(updated, *lot)
	}

	r.commitScratch(scratch, movements)
	return updated, nil
}

func (r *MemoryRepository) TransferBatch(ctx context.Context, destWarehouseID string, ops []dto.TransferLineOperation) ([]model.StockLot, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.SourceLotID
	}
	scratch, err := r.scratch(ids)
	if err != nil {
		return nil, err
	}

	movements := make([]*model.StockMovement, 0, 2*len(ops))
	dests := make([]model.StockLot, 0, len(ops))
	for _, op := range ops {
		src := scratch[op.SourceLotID]
		if op.Quantity > src.AvailableQuantity {
			return nil, fmt.Errorf("lot %s has %d available, want to transfer %d: %w",
				src.ID, src.AvailableQuantity, op.Quantity, ledger.ErrInsufficientStock)
		}

		beforeOut := src.OnHandQuantity
		src.OnHandQuantity -= op.Quantity
		src.Recalculate()
		completeMovement(op.OutMovement, src, beforeOut, src.OnHandQuantity)
		movements = append(movements, op.OutMovement)

		dest := r.destLotLocked(scratch, src, destWarehouseID)
		beforeIn := dest.OnHandQuantity
		dest.OnHandQuantity += op.Quantity
		dest.Recalculate()
		completeMovement(op.InMovement, dest, beforeIn, dest.OnHandQuantity)
		movements = append(movements, op.InMovement)
		dests = append(dests, *dest)
	}

	r.commitScratch(scratch, movements)
	return dests, nil
}

// destLotLocked finds or creates the destination lot inside the scratch set so
// repeated lines for the same batch accumulate before commit.
func (r *MemoryRepository) destLotLocked(scratch map[string]*model.StockLot, src *model.StockLot, destWarehouseID string) *model.StockLot {
	for _, lot := range scratch {
		if lot.ProductID == src.ProductID && lot.WarehouseID == destWarehouseID && sameBatch(lot.BatchNumber, src.BatchNumber) {
			return lot
		}
	}
	if existing := r.findByBatchLocked(src.ProductID, destWarehouseID, src.BatchNumber); existing != nil {
		cp := *existing
		scratch[cp.ID] = &cp
		return scratch[cp.ID]
	}

	now := time.Now()
	dest := &model.StockLot{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ProductID:         src.ProductID,
		WarehouseID:       destWarehouseID,
		BatchNumber:       src.BatchNumber,
		UnitCost:          src.UnitCost,
		ManufacturingDate: src.ManufacturingDate,
		ExpiryDate:        src.ExpiryDate,
		Status:            model.LotStatusActive,
	}
	scratch[dest.ID] = dest
	return dest
}

func sameBatch(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func (r *MemoryRepository) SetLotLocation(ctx context.Context, lotID string, locationID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lot, ok := r.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %s: %w", lotID, ledger.ErrLotNotFound)
	}
	lot.LocationID = locationID
	lot.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) MarkExpiredLots(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var marked int64
	for _, lot := range r.lots {
		if lot.Status == model.LotStatusActive && lot.ExpiryDate != nil && lot.ExpiryDate.Before(now) {
			lot.Status = model.LotStatusExpired
			lot.UpdatedAt = now
			marked++
		}
	}
	return marked, nil
}

func (r *MemoryRepository) LogMovement(ctx context.Context, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *MemoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StockMovement, 0)
	for _, m := range r.movements {
		if f.LotID != "" && m.LotID != f.LotID {
			continue
		}
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.WarehouseID != "" && m.WarehouseID != f.WarehouseID {
			continue
		}
		if f.MovementType != "" && m.MovementType != f.MovementType {
			continue
		}
		if f.ReferenceID != "" && (m.ReferenceID == nil || *m.ReferenceID != f.ReferenceID) {
			continue
		}
		if f.StartDate != nil && m.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && m.CreatedAt.After(*f.EndDate) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.PageSize > 0 {
		start := (f.Page - 1) * f.PageSize
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *MemoryRepository) Summary(ctx context.Context, f *dto.SummaryFilters) (*dto.StockSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summary dto.StockSummary
	for _, lot := range r.lots {
		if f.WarehouseID != "" && lot.WarehouseID != f.WarehouseID {
			continue
		}
		if f.ProductID != "" && lot.ProductID != f.ProductID {
			continue
		}
		summary.TotalLots++
		summary.TotalOnHand += lot.OnHandQuantity
		summary.TotalReserved += lot.ReservedQuantity
		summary.TotalAvailable += lot.AvailableQuantity
		summary.TotalValue = summary.TotalValue.Add(lot.TotalValue)
		if lot.Status == model.LotStatusExpired {
			summary.ExpiredLots++
		}
	}
	return &summary, nil
}
