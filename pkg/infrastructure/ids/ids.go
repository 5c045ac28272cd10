package ids

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator hands out sequential order numbers and random transaction IDs.
type Generator struct {
	next atomic.Int64
}

func NewGenerator(seed int64) *Generator {
	g := &Generator{}
	g.next.Store(seed)
	return g
}

// OrderArchive reports the highest order number already stored.
type OrderArchive interface {
	MaxOrderNumber() (int64, error)
}

// ResumeGenerator continues after the seed or the archive's last order
// number, whichever is higher.
func ResumeGenerator(seed int64, archive OrderArchive) (*Generator, error) {
	last, err := archive.MaxOrderNumber()
	if err != nil {
		return nil, err
	}
	if last > seed {
		seed = last
	}
	return NewGenerator(seed), nil
}

func (g *Generator) NextOrderNumber() (string, error) {
	return strconv.FormatInt(g.next.Add(1), 10), nil
}

func (g *Generator) NextTransactionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
