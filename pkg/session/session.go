package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"canteen/pkg/domain/model"
	"canteen/pkg/domain/service"
)

// Session owns one user's cart and checkout flow.
type Session struct {
	ID       string
	Cart     service.CartService
	Checkout service.CheckoutService

	mu       sync.Mutex
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session.
func (s *Session) Do(fn func(s *Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

type Factory struct {
	Receipts   model.ReceiptRepository
	IDs        model.IDGenerator
	Clock      model.Clock
	Dispatcher service.EventDispatcher
	Policy     service.WalletPolicy
}

func (f Factory) New(id string) *Session {
	cart := service.NewCartService(model.NewCart(), model.NewQuantities(), f.Dispatcher)
	return &Session{
		ID:       id,
		Cart:     cart,
		Checkout: service.NewCheckoutService(cart, f.Receipts, f.IDs, f.Clock, f.Dispatcher, f.Policy),
	}
}

type Registry struct {
	factory Factory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating an empty one on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = r.factory.New(id)
		r.sessions[id] = s
	}
	s.lastSeen = r.factory.Clock.Now()
	return s
}

// Sweep drops sessions not requested for at least idle and returns how many went.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.factory.Clock.Now()
	dropped := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) >= idle {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Expire sweeps idle sessions every interval until ctx is done.
func (r *Registry) Expire(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				log.WithFields(log.Fields{"dropped": n, "idle": idle}).Info("expired idle sessions")
			}
		}
	}
}

func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext panics when no session is attached: handlers must only run
// behind the session middleware.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	if !ok || s == nil {
		panic("session: cart session must be initialized before use")
	}
	return s
}
