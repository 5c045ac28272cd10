package model

import "github.com/shopspring/decimal"

// Quantities tracks how many units of each cart item are ordered.
// Every stored quantity is at least 1.
type Quantities struct {
	counts map[int]int
}

func NewQuantities() *Quantities {
	return &Quantities{counts: make(map[int]int)}
}

// Seed sets missing IDs to 1 and leaves existing counts untouched.
func (q *Quantities) Seed(items []CartItem) {
	for _, item := range items {
		if _, ok := q.counts[item.ID]; !ok {
			q.counts[item.ID] = 1
		}
	}
}

func (q *Quantities) Increment(id int) error {
	if _, ok := q.counts[id]; !ok {
		return ErrItemNotInCart
	}
	q.counts[id]++
	return nil
}

// Decrement lowers the count by one. At the floor the ID is dropped instead
// and removed is true.
func (q *Quantities) Decrement(id int) (removed bool, err error) {
	n, ok := q.counts[id]
	if !ok {
		return false, ErrItemNotInCart
	}
	if n > 1 {
		q.counts[id] = n - 1
		return false, nil
	}
	delete(q.counts, id)
	return true, nil
}

func (q *Quantities) Of(id int) int {
	return q.counts[id]
}

func (q *Quantities) Has(id int) bool {
	_, ok := q.counts[id]
	return ok
}

func (q *Quantities) TotalCount() int {
	total := 0
	for _, n := range q.counts {
		total += n
	}
	return total
}

// TotalPrice sums price*quantity over the items that still have a quantity,
// rounded to cents.
func (q *Quantities) TotalPrice(items []CartItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		n, ok := q.counts[item.ID]
		if !ok {
			continue
		}
		price, err := ParsePrice(item.Price)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(n))))
	}
	return total.Round(2), nil
}

func (q *Quantities) Reset() {
	q.counts = make(map[int]int)
}

func (q *Quantities) Snapshot() map[int]int {
	out := make(map[int]int, len(q.counts))
	for id, n := range q.counts {
		out[id] = n
	}
	return out
}
