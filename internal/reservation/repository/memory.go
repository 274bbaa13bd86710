package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wareflow/inventory-service/internal/model"
	"github.com/wareflow/inventory-service/internal/reservation/dto"
)

type MemoryRepository struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	lines        map[string][]model.AllocationLine // keyed by reservation id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		reservations: make(map[string]*model.Reservation),
		lines:        make(map[string][]model.AllocationLine),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, reservation *model.Reservation, lines []model.AllocationLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[reservation.ID]; exists {
		return fmt.Errorf("reservation %s already exists", reservation.ID)
	}
	cp := *reservation
	cp.Lines = nil
	r.reservations[cp.ID] = &cp
	r.lines[cp.ID] = append([]model.AllocationLine(nil), lines...)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[reservation.ID]; !ok {
		return fmt.Errorf("reservation %s not found", reservation.ID)
	}
	reservation.UpdatedAt = time.Now()
	cp := *reservation
	cp.Lines = nil
	r.reservations[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (r *MemoryRepository) FindByNumber(ctx context.Context, number string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.reservations {
		if res.ReservationNumber == number {
			cp := *res
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.Reservation, 0)
	for _, res := range r.reservations {
		if f.ProductID != "" && res.ProductID != f.ProductID {
			continue
		}
		if f.WarehouseID != "" && (res.WarehouseID == nil || *res.WarehouseID != f.WarehouseID) {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		if f.OrderID != "" && (res.OrderID == nil || *res.OrderID != f.OrderID) {
			continue
		}
		if f.CustomerID != "" && (res.CustomerID == nil || *res.CustomerID != f.CustomerID) {
			continue
		}
		if f.ExpiringBefore != nil && res.ExpiresAt.After(*f.ExpiringBefore) {
			continue
		}
		matched = append(matched, *res)
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

func (r *MemoryRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.Reservation, 0)
	for _, res := range r.reservations {
		holding := res.Status == model.ReservationStatusReserved ||
			res.Status == model.ReservationStatusPartiallyReserved
		if holding && now.After(res.ExpiresAt) {
			matched = append(matched, *res)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExpiresAt.Before(matched[j].ExpiresAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, res := range r.reservations {
		if strings.HasPrefix(res.ReservationNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) LinesByReservation(ctx context.Context, reservationID string) ([]model.AllocationLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AllocationLine(nil), r.lines[reservationID]...), nil
}

func (r *MemoryRepository) DeleteLines(ctx context.Context, reservationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lines, reservationID)
	return nil
}
