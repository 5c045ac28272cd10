package repository

import (
	"sort"
	"strconv"
	"sync"

	"canteen/pkg/domain/model"
)

type MemoryReceiptRepository struct {
	mu       sync.RWMutex
	receipts map[string]model.Receipt
}

func NewMemoryReceiptRepository() *MemoryReceiptRepository {
	return &MemoryReceiptRepository{receipts: make(map[string]model.Receipt)}
}

func (r *MemoryReceiptRepository) Store(receipt *model.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receipts[receipt.OrderNumber]; exists {
		return model.ErrDuplicateOrder
	}
	r.receipts[receipt.OrderNumber] = *receipt
	return nil
}

// MaxOrderNumber returns the highest numeric order number stored, or 0.
func (r *MemoryReceiptRepository) MaxOrderNumber() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var highest int64
	for orderNumber := range r.receipts {
		if n, err := strconv.ParseInt(orderNumber, 10, 64); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (r *MemoryReceiptRepository) Find(orderNumber string) (*model.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	receipt, ok := r.receipts[orderNumber]
	if !ok {
		return nil, model.ErrReceiptNotFound
	}
	return &receipt, nil
}

func (r *MemoryReceiptRepository) List() ([]model.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Receipt, 0, len(r.receipts))
	for _, receipt := range r.receipts {
		out = append(out, receipt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OrderDate.Before(out[j].OrderDate)
	})
	return out, nil
}
