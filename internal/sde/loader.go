package sde

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"eve-marketscan/internal/logger"
)

// NotFound is returned by name lookups that match nothing.
const NotFound = -1

// DefaultVolume is reported for items without a known volume.
const DefaultVolume = 1.0

// Data holds the static directories used by a run.
type Data struct {
	Types     *Types
	Locations *Locations
}

// Load reads the item directory and the (optional) location directory.
func Load(typesPath, locationsPath string) (*Data, error) {
	logger.Info("SDE", "Loading item types...")
	types, err := LoadTypes(typesPath)
	if err != nil {
		return nil, err
	}

	logger.Info("SDE", "Loading locations...")
	locations, err := LoadLocations(locationsPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("SDE", fmt.Sprintf("File %s not found, location names unavailable", locationsPath))
		locations, err = NewLocations(nil), nil
	}
	if err != nil {
		return nil, err
	}

	logger.Section("SDE Statistics")
	logger.Stats("Item types", types.Len())
	logger.Stats("Locations", locations.Len())
	return &Data{Types: types, Locations: locations}, nil
}

// ItemType is one entry of the item directory.
type ItemType struct {
	ID     int32
	Name   string
	Volume float64 // m³; DefaultVolume when the directory has none
}

// Types is the read-only item directory.
type Types struct {
	byID   map[int32]*ItemType
	byName map[string]int32 // lowercase name -> lowest id with that name
	ids    []int32
}

// NewTypes builds a directory from already-decoded entries.
func NewTypes(items []ItemType) *Types {
	t := &Types{
		byID:   make(map[int32]*ItemType, len(items)),
		byName: make(map[string]int32, len(items)),
	}
	for i := range items {
		it := items[i]
		t.byID[it.ID] = &it
	}
	for id := range t.byID {
		t.ids = append(t.ids, id)
	}
	sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	for _, id := range t.ids {
		key := strings.ToLower(t.byID[id].Name)
		if key == "" {
			continue
		}
		if _, dup := t.byName[key]; !dup {
			t.byName[key] = id
		}
	}
	return t
}

// LoadTypes reads a typeIDs file: {"<id>": {"name": "...", "volume": 0.01}}.
// Keys that are not numeric are skipped.
func LoadTypes(path string) (*Types, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item directory: %w", err)
	}
	var raw map[string]struct {
		Name   string   `json:"name"`
		Volume *float64 `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse item directory %s: %w", path, err)
	}

	items := make([]ItemType, 0, len(raw))
	skipped := 0
	for key, v := range raw {
		id, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			skipped++
			continue
		}
		vol := DefaultVolume
		if v.Volume != nil {
			vol = *v.Volume
		}
		items = append(items, ItemType{ID: int32(id), Name: v.Name, Volume: vol})
	}
	if skipped > 0 {
		logger.Warn("SDE", fmt.Sprintf("Skipped %d non-numeric item keys in %s", skipped, path))
	}
	return NewTypes(items), nil
}

// Len returns the number of known items.
func (t *Types) Len() int { return len(t.ids) }

// IDList returns every known item ID in ascending order.
func (t *Types) IDList() []int32 {
	out := make([]int32, len(t.ids))
	copy(out, t.ids)
	return out
}

// Name returns the item's name, or "" when unknown.
func (t *Types) Name(id int32) string {
	if it, ok := t.byID[id]; ok {
		return it.Name
	}
	return ""
}

// Volume returns the item's volume, or DefaultVolume when unknown.
func (t *Types) Volume(id int32) float64 {
	if it, ok := t.byID[id]; ok {
		return it.Volume
	}
	return DefaultVolume
}

// IDByName resolves a case-insensitive exact name, or returns NotFound.
func (t *Types) IDByName(name string) int32 {
	if id, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return NotFound
}

// Search returns the IDs of items whose name contains fragment
// (case-insensitive), in ascending order.
func (t *Types) Search(fragment string) []int32 {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return nil
	}
	var out []int32
	for _, id := range t.ids {
		if strings.Contains(strings.ToLower(t.byID[id].Name), needle) {
			out = append(out, id)
		}
	}
	return out
}

// Locations is the read-only location directory (id -> display name).
type Locations struct {
	names  map[int64]string
	byName map[string]int64
	ids    []int64
}

// NewLocations builds a directory from an id -> name map.
func NewLocations(names map[int64]string) *Locations {
	l := &Locations{
		names:  make(map[int64]string, len(names)),
		byName: make(map[string]int64, len(names)),
	}
	for id, name := range names {
		l.names[id] = name
		l.ids = append(l.ids, id)
	}
	sort.Slice(l.ids, func(i, j int) bool { return l.ids[i] < l.ids[j] })
	for _, id := range l.ids {
		key := strings.ToLower(l.names[id])
		if _, dup := l.byName[key]; !dup && key != "" {
			l.byName[key] = id
		}
	}
	return l
}

// LoadLocations reads a location file: {"<id>": "name"}.
func LoadLocations(path string) (*Locations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read location directory: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse location directory %s: %w", path, err)
	}
	names := make(map[int64]string, len(raw))
	for key, name := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		names[id] = name
	}
	return NewLocations(names), nil
}

// Len returns the number of known locations.
func (l *Locations) Len() int { return len(l.ids) }

// IDList returns every known location ID in ascending order.
func (l *Locations) IDList() []int64 {
	out := make([]int64, len(l.ids))
	copy(out, l.ids)
	return out
}

// Name returns the location's display name, or "" when unknown.
func (l *Locations) Name(id int64) string {
	return l.names[id]
}

// IDByName resolves a case-insensitive exact name, or returns NotFound.
func (l *Locations) IDByName(name string) int64 {
	if id, ok := l.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return NotFound
}
