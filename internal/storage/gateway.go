// Package storage is the file store the kiosk keeps photos in.
//
// Photos live in folders. An item may be trashed, which hides it from active
// listings but keeps its name and parent folder.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound    = errors.New("storage: item not found")
	ErrWrongParent = errors.New("storage: item is not in the source folder")
	ErrTrashed     = errors.New("storage: item is trashed")
)

// Item is one stored file.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parentId"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	Trashed     bool      `json:"trashed"`
	CreatedTime time.Time `json:"createdTime"`
}

// Page is one page of a folder listing. An empty NextPageToken ends the listing.
type Page struct {
	Items         []Item
	NextPageToken string
}

// Gateway is the contract the kiosk needs from a file store.
type Gateway interface {
	// List returns the trashed subset of parentID when trashed is true, the active subset otherwise.
	List(ctx context.Context, parentID string, trashed bool, pageToken string, pageSize int) (Page, error)
	Create(ctx context.Context, parentID, name, mimeType string, data []byte) (Item, error)
	Move(ctx context.Context, id, fromParentID, toParentID string) error
	Trash(ctx context.Context, id string) error
	// Get streams the blob. The caller closes the reader.
	Get(ctx context.Context, id string) (io.ReadCloser, Item, error)
}

// Walk pages through a folder subset and calls fn for every item.
func Walk(ctx context.Context, g Gateway, parentID string, trashed bool, pageSize int, fn func(Item) error) error {
	token := ""
	for {
		page, err := g.List(ctx, parentID, trashed, token, pageSize)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		token = page.NextPageToken
	}
}
