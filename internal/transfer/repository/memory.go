package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/transfer/dto"
)

type MemoryRepository struct {
	mu        sync.Mutex
	transfers map[string]*model.StockTransfer
	lines     map[string][]model.TransferLine // keyed by transfer id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		transfers: make(map[string]*model.StockTransfer),
		lines:     make(map[string][]model.TransferLine),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, transfer *model.StockTransfer, lines []model.TransferLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transfers[transfer.ID]; exists {
		return fmt.Errorf("transfer %s already exists", transfer.ID)
	}
	cp := *transfer
	cp.Lines = nil
	r.transfers[cp.ID] = &cp
	r.lines[cp.ID] = append([]model.TransferLine(nil), lines...)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, transfer *model.StockTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transfers[transfer.ID]; !ok {
		return fmt.Errorf("transfer %s not found", transfer.ID)
	}
	transfer.UpdatedAt = time.Now()
	cp := *transfer
	cp.Lines = nil
	r.transfers[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateLines(ctx context.Context, lines []model.TransferLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		stored := r.lines[line.TransferID]
		for i := range stored {
			if stored[i].ID == line.ID {
				stored[i] = line
			}
		}
	}
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*model.StockTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.transfers[id]
	if !ok {
		return nil, nil
	}
	cp := *tr
	return &cp, nil
}

func (r *MemoryRepository) FindByNumber(ctx context.Context, number string) (*model.StockTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tr := range r.transfers {
		if tr.TransferNumber == number {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context, f *dto.TransferFilters) ([]model.StockTransfer, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StockTransfer, 0)
	for _, tr := range r.transfers {
		if f.FromWarehouseID != "" && tr.FromWarehouseID != f.FromWarehouseID {
			continue
		}
		if f.ToWarehouseID != "" && tr.ToWarehouseID != f.ToWarehouseID {
			continue
		}
		if f.Status != "" && tr.Status != f.Status {
			continue
		}
		if f.Priority != "" && tr.Priority != f.Priority {
			continue
		}
		matched = append(matched, *tr)
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

func (r *MemoryRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, tr := range r.transfers {
		if strings.HasPrefix(tr.TransferNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) LinesByTransfer(ctx context.Context, transferID string) ([]model.TransferLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TransferLine(nil), r.lines[transferID]...), nil
}
