package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wareflow/inventory-service/internal/adjustment/dto"
	"github.com/wareflow/inventory-service/internal/model"
)

type MemoryRepository struct {
	mu          sync.Mutex
	adjustments map[string]*model.StockAdjustment
	lines       map[string][]model.AdjustmentLine // keyed by adjustment id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		adjustments: make(map[string]*model.StockAdjustment),
		lines:       make(map[string][]model.AdjustmentLine),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, adjustment *model.StockAdjustment, lines []model.AdjustmentLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adjustments[adjustment.ID]; exists {
		return fmt.Errorf("adjustment %s already exists", adjustment.ID)
	}
	cp := *adjustment
	cp.Lines = nil
	r.adjustments[cp.ID] = &cp
	r.lines[cp.ID] = append([]model.AdjustmentLine(nil), lines...)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, adjustment *model.StockAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adjustments[adjustment.ID]; !ok {
		return fmt.Errorf("adjustment %s not found", adjustment.ID)
	}
	adjustment.UpdatedAt = time.Now()
	cp := *adjustment
	cp.Lines = nil
	r.adjustments[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateLines(ctx context.Context, lines []model.AdjustmentLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		stored := r.lines[line.AdjustmentID]
		for i := range stored {
			if stored[i].ID == line.ID {
				stored[i] = line
			}
		}
	}
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*model.StockAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	adj, ok := r.adjustments[id]
	if !ok {
		return nil, nil
	}
	cp := *adj
	return &cp, nil
}

func (r *MemoryRepository) FindByNumber(ctx context.Context, number string) (*model.StockAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, adj := range r.adjustments {
		if adj.AdjustmentNumber == number {
			cp := *adj
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context, f *dto.AdjustmentFilters) ([]model.StockAdjustment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.StockAdjustment, 0)
	for _, adj := range r.adjustments {
		if f.WarehouseID != "" && adj.WarehouseID != f.WarehouseID {
			continue
		}
		if f.Status != "" && adj.Status != f.Status {
			continue
		}
		if f.AdjustmentType != "" && adj.AdjustmentType != f.AdjustmentType {
			continue
		}
		matched = append(matched, *adj)
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
	for _, adj := range r.adjustments {
		if strings.HasPrefix(adj.AdjustmentNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) LinesByAdjustment(ctx context.Context, adjustmentID string) ([]model.AdjustmentLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AdjustmentLine(nil), r.lines[adjustmentID]...), nil
}
