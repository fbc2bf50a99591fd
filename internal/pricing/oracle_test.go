package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

func TestStaticOracle(t *testing.T) {
	s := NewStatic()
	s.Set("WETH", decimal.NewFromInt(2000))

	got, err := s.Price(context.Background(), domain.NewAsset("WETH", 18))
	if err != nil {
		t.Fatalf("Price = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Price = %s, want 2000", got)
	}

	if _, ok := s.UpdatedAt("WETH"); !ok {
		t.Error("UpdatedAt should report the symbol as known")
	}
}

func TestStaticOracleUnknownSymbol(t *testing.T) {
	s := NewStatic()

	_, err := s.Price(context.Background(), domain.NewAsset("GHOST", 18))
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("Price = %v, want ErrNoPrice", err)
	}
}

func TestStaticOracleOverwrite(t *testing.T) {
	s := NewStatic()
	s.Set("USDC", decimal.NewFromInt(1))
	s.Set("USDC", decimal.RequireFromString("0.99"))

	got, _ := s.Price(context.Background(), domain.NewAsset("USDC", 6))
	if !got.Equal(decimal.RequireFromString("0.99")) {
		t.Errorf("Price = %s, want 0.99", got)
	}
}
