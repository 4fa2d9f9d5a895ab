package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"photokiosk/internal/pkg/breaker"
)

// BreakerGateway fails fast while the underlying store keeps erroring.
type BreakerGateway struct {
	next Gateway
	cb   *breaker.Breaker
}

func NewBreakerGateway(next Gateway, s breaker.Settings, logger *slog.Logger) *BreakerGateway {
	s.Ignore = isClientError
	return &BreakerGateway{
		next: next,
		cb:   breaker.New("file-store", s, logger),
	}
}

// State is the breaker state: closed, half-open or open.
func (g *BreakerGateway) State() string {
	return g.cb.State()
}

func (g *BreakerGateway) List(ctx context.Context, parentID string, trashed bool, pageToken string, pageSize int) (Page, error) {
	return breaker.Cast[Page](g.cb.Execute(func() (any, error) {
		return g.next.List(ctx, parentID, trashed, pageToken, pageSize)
	}))
}

func (g *BreakerGateway) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (Item, error) {
	return breaker.Cast[Item](g.cb.Execute(func() (any, error) {
		return g.next.Create(ctx, parentID, name, mimeType, data)
	}))
}

func (g *BreakerGateway) Move(ctx context.Context, id, fromParentID, toParentID string) error {
	return g.cb.Run(func() error {
		return g.next.Move(ctx, id, fromParentID, toParentID)
	})
}

func (g *BreakerGateway) Trash(ctx context.Context, id string) error {
	return g.cb.Run(func() error {
		return g.next.Trash(ctx, id)
	})
}

func (g *BreakerGateway) Get(ctx context.Context, id string) (io.ReadCloser, Item, error) {
	type blob struct {
		rc   io.ReadCloser
		item Item
	}
	b, err := breaker.Cast[blob](g.cb.Execute(func() (any, error) {
		rc, item, err := g.next.Get(ctx, id)
		return blob{rc: rc, item: item}, err
	}))
	if err != nil {
		return nil, Item{}, err
	}
	return b.rc, b.item, nil
}

func isClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrWrongParent) || errors.Is(err, ErrTrashed) ||
		errors.Is(err, context.Canceled)
}
