package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"photokiosk/internal/mailer"
	"photokiosk/internal/storage"
)

// MemoryFiles is an in-memory storage.Gateway with failure injection.
type MemoryFiles struct {
	mu        sync.Mutex
	items     []storage.Item
	blobs     map[string][]byte
	listErrs  map[string]error
	createErr error
	listCalls int
	seq       int
	clock     time.Time
}

func NewMemoryFiles() *MemoryFiles {
	return &MemoryFiles{
		blobs:    make(map[string][]byte),
		listErrs: make(map[string]error),
		clock:    time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC),
	}
}

func partitionKey(parentID string, trashed bool) string {
	return fmt.Sprintf("%s/%t", parentID, trashed)
}

// Seed stores an empty item directly, bypassing any injected failure.
func (m *MemoryFiles) Seed(parentID, name string, trashed bool) storage.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.add(parentID, name, "image/jpeg", nil)
	if trashed {
		m.items[len(m.items)-1].Trashed = true
		item.Trashed = true
	}
	return item
}

// FailList makes every List call on the partition return err.
func (m *MemoryFiles) FailList(parentID string, trashed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrs[partitionKey(parentID, trashed)] = err
}

// FailCreate makes every Create call return err. Pass nil to clear.
func (m *MemoryFiles) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *MemoryFiles) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// Items returns a copy of every stored item in creation order.
func (m *MemoryFiles) Items() []storage.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Item(nil), m.items...)
}

func (m *MemoryFiles) add(parentID, name, mimeType string, data []byte) storage.Item {
	m.seq++
	m.clock = m.clock.Add(time.Second)
	item := storage.Item{
		ID:          fmt.Sprintf("file-%d", m.seq),
		Name:        name,
		ParentID:    parentID,
		MimeType:    mimeType,
		Size:        int64(len(data)),
		CreatedTime: m.clock,
	}
	m.items = append(m.items, item)
	m.blobs[item.ID] = append([]byte(nil), data...)
	return item
}

func (m *MemoryFiles) List(ctx context.Context, parentID string, trashed bool, pageToken string, pageSize int) (storage.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	if err := m.listErrs[partitionKey(parentID, trashed)]; err != nil {
		return storage.Page{}, err
	}

	var matching []storage.Item
	for _, item := range m.items {
		if item.ParentID == parentID && item.Trashed == trashed {
			matching = append(matching, item)
		}
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return storage.Page{}, fmt.Errorf("bad token %q", pageToken)
		}
		offset = n
	}
	if offset > len(matching) {
		offset = len(matching)
	}
	end := offset + pageSize
	page := storage.Page{}
	if end < len(matching) {
		page.NextPageToken = strconv.Itoa(end)
	} else {
		end = len(matching)
	}
	page.Items = append(page.Items, matching[offset:end]...)
	return page, nil
}

func (m *MemoryFiles) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (storage.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return storage.Item{}, m.createErr
	}
	return m.add(parentID, name, mimeType, data), nil
}

func (m *MemoryFiles) Move(ctx context.Context, id, fromParentID, toParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		if m.items[i].ParentID != fromParentID {
			return storage.ErrWrongParent
		}
		if m.items[i].Trashed {
			return storage.ErrTrashed
		}
		m.items[i].ParentID = toParentID
		return nil
	}
	return storage.ErrNotFound
}

func (m *MemoryFiles) Trash(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Trashed = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *MemoryFiles) Get(ctx context.Context, id string) (io.ReadCloser, storage.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id {
			return io.NopCloser(bytes.NewReader(m.blobs[id])), item, nil
		}
	}
	return nil, storage.Item{}, storage.ErrNotFound
}

// MemorySheets is an in-memory sheets.Gateway keyed by sheet id and tab.
type MemorySheets struct {
	mu        sync.Mutex
	tabs      map[string][][]string
	appendErr error
	readErr   error
	appends   int
}

func NewMemorySheets() *MemorySheets {
	return &MemorySheets{tabs: make(map[string][][]string)}
}

func tabKey(sheetID, rng string) string {
	tab := rng
	if i := strings.Index(rng, "!"); i >= 0 {
		tab = rng[:i]
	}
	return sheetID + "/" + tab
}

// SetRows replaces a tab's content directly.
func (m *MemorySheets) SetRows(sheetID, rng string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tabKey(sheetID, rng)] = copyRows(rows)
}

// Rows returns a copy of a tab's content.
func (m *MemorySheets) Rows(sheetID, rng string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.tabs[tabKey(sheetID, rng)])
}

func (m *MemorySheets) FailAppend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

func (m *MemorySheets) FailRead(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MemorySheets) Appends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}

func (m *MemorySheets) AppendRow(ctx context.Context, sheetID, rng string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	key := tabKey(sheetID, rng)
	m.tabs[key] = append(m.tabs[key], append([]string(nil), row...))
	m.appends++
	return nil
}

func (m *MemorySheets) GetAllRows(ctx context.Context, sheetID, rng string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return copyRows(m.tabs[tabKey(sheetID, rng)]), nil
}

func (m *MemorySheets) UpdateRange(ctx context.Context, sheetID, rng string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tabKey(sheetID, rng)] = copyRows(rows)
	return nil
}

func (m *MemorySheets) ClearRange(ctx context.Context, sheetID, rng string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, tabKey(sheetID, rng))
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

// RecordingMailer captures messages instead of sending them.
type RecordingMailer struct {
	mu      sync.Mutex
	sent    []mailer.Message
	err     error
	enabled bool
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{enabled: true}
}

// Disable makes the mailer report itself as unconfigured.
func (r *RecordingMailer) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

func (r *RecordingMailer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *RecordingMailer) Configured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

func (r *RecordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns captured messages sorted by subject, keeping send order within a subject.
func (r *RecordingMailer) Sent() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]mailer.Message(nil), r.sent...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}
