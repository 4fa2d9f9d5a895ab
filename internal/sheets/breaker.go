package sheets

import (
	"context"
	"errors"
	"log/slog"

	"photokiosk/internal/pkg/breaker"
)

// BreakerGateway fails fast while the underlying sheet service keeps erroring.
type BreakerGateway struct {
	next Gateway
	cb   *breaker.Breaker
}

func NewBreakerGateway(next Gateway, s breaker.Settings, logger *slog.Logger) *BreakerGateway {
	s.Ignore = func(err error) bool { return errors.Is(err, context.Canceled) }
	return &BreakerGateway{
		next: next,
		cb:   breaker.New("sheets", s, logger),
	}
}

// State is the breaker state: closed, half-open or open.
func (g *BreakerGateway) State() string {
	return g.cb.State()
}

func (g *BreakerGateway) AppendRow(ctx context.Context, sheetID, rng string, row []string) error {
	return g.cb.Run(func() error {
		return g.next.AppendRow(ctx, sheetID, rng, row)
	})
}

func (g *BreakerGateway) GetAllRows(ctx context.Context, sheetID, rng string) ([][]string, error) {
	return breaker.Cast[[][]string](g.cb.Execute(func() (any, error) {
		return g.next.GetAllRows(ctx, sheetID, rng)
	}))
}

func (g *BreakerGateway) UpdateRange(ctx context.Context, sheetID, rng string, rows [][]string) error {
	return g.cb.Run(func() error {
		return g.next.UpdateRange(ctx, sheetID, rng, rows)
	})
}

func (g *BreakerGateway) ClearRange(ctx context.Context, sheetID, rng string) error {
	return g.cb.Run(func() error {
		return g.next.ClearRange(ctx, sheetID, rng)
	})
}
