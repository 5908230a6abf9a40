package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/iliyamo/cinema-seat-engine/internal/model"
)

// MemoryCatalog is an in-process catalog used in memory mode and by tests.
type MemoryCatalog struct {
	mu        sync.RWMutex
	showtimes map[uint64]model.Showtime
	rooms     map[uint64]model.Room
	layouts   map[uint64]model.RoomLayout
}

// CatalogSeed is the document accepted by LoadCatalogSeed.
type CatalogSeed struct {
	Showtimes []model.Showtime   `json:"showtimes"`
	Rooms     []model.Room       `json:"rooms"`
	Layouts   []model.RoomLayout `json:"layouts"`
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		showtimes: make(map[uint64]model.Showtime),
		rooms:     make(map[uint64]model.Room),
		layouts:   make(map[uint64]model.RoomLayout),
	}
}

// LoadCatalogSeed reads a JSON seed file into a new MemoryCatalog.
func LoadCatalogSeed(path string) (*MemoryCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed CatalogSeed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}
	c := NewMemoryCatalog()
	c.Apply(seed)
	return c, nil
}

// Apply adds every entry of seed to the catalog, replacing entries with the
// same id.
func (c *MemoryCatalog) Apply(seed CatalogSeed) {
	for _, s := range seed.Showtimes {
		c.PutShowtime(s)
	}
	for _, r := range seed.Rooms {
		c.PutRoom(r)
	}
	for _, l := range seed.Layouts {
		c.PutLayout(l)
	}
}

func (c *MemoryCatalog) PutShowtime(s model.Showtime) {
	c.mu.Lock()
	c.showtimes[s.ID] = s
	c.mu.Unlock()
}

func (c *MemoryCatalog) PutRoom(r model.Room) {
	c.mu.Lock()
	c.rooms[r.ID] = r
	c.mu.Unlock()
}

func (c *MemoryCatalog) PutLayout(l model.RoomLayout) {
	c.mu.Lock()
	c.layouts[l.ID] = l
	c.mu.Unlock()
}

func (c *MemoryCatalog) GetShowtime(_ context.Context, id uint64) (*model.Showtime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.showtimes[id]
	if !ok {
		return nil, ErrShowtimeNotFound
	}
	return &s, nil
}

func (c *MemoryCatalog) GetRoom(_ context.Context, id uint64) (*model.Room, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &r, nil
}

func (c *MemoryCatalog) GetRoomLayout(_ context.Context, id uint64) (*model.RoomLayout, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.layouts[id]
	if !ok {
		return nil, ErrLayoutNotFound
	}
	rows := make([]model.LayoutRow, len(l.Rows))
	copy(rows, l.Rows)
	l.Rows = rows
	return &l, nil
}
