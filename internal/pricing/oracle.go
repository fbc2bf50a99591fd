// Package pricing implements the price oracle the vault consults for swap
// valuation: a static admin-settable oracle plus an external feed that keeps
// it current.
package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

// ErrNoPrice indicates that no price could be determined for an asset.
var ErrNoPrice = errors.New("no price available")

// Oracle reports a normalized USD price per whole unit of an asset.
type Oracle interface {
	Price(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
}

type quote struct {
	price     decimal.Decimal
	updatedAt time.Time
}

// Static is an in-memory oracle. Prices are set by an operator or by the
// external feed worker; reads never block.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]quote
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{quotes: make(map[string]quote)}
}

// Set stores the USD price for a symbol.
func (s *Static) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = quote{price: price, updatedAt: time.Now()}
}

// Price returns the stored price, or ErrNoPrice for unknown symbols.
func (s *Static) Price(_ context.Context, asset domain.Asset) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[asset.Symbol]
	if !ok {
		return decimal.Decimal{}, ErrNoPrice
	}
	return q.price, nil
}

// UpdatedAt returns when the symbol's price was last set.
func (s *Static) UpdatedAt(symbol string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q.updatedAt, ok
}
