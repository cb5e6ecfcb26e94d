package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// RegionGroup is a named set of regions that a location preference can
// refer to as a whole, e.g. "Greater Kingston".
type RegionGroup struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions"`
}

type regionGroupsFile struct {
	RegionGroups []RegionGroup `json:"region_groups"`
}

// RegionGroups holds the region group configuration backed by a JSON file.
type RegionGroups struct {
	path   string
	mu     sync.RWMutex
	groups []RegionGroup
}

// NewRegionGroups creates an empty configuration persisted at path.
func NewRegionGroups(path string, groups ...RegionGroup) *RegionGroups {
	return &RegionGroups{path: path, groups: groups}
}

// LoadRegionGroups reads the configuration file. A missing file yields
// an empty configuration.
func LoadRegionGroups(path string) (*RegionGroups, error) {
	rg := NewRegionGroups(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read region groups: %w", err)
	}

	var file regionGroupsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse region groups: %w", err)
	}
	rg.groups = file.RegionGroups
	return rg, nil
}

// save writes the configuration. Callers must hold the write lock.
func (rg *RegionGroups) save() error {
	if rg.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(regionGroupsFile{RegionGroups: rg.groups}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal region groups: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(rg.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(rg.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write region groups: %w", err)
	}
	return nil
}

// All returns a copy of every configured group.
func (rg *RegionGroups) All() []RegionGroup {
	if rg == nil {
		return nil
	}
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	out := make([]RegionGroup, len(rg.groups))
	copy(out, rg.groups)
	return out
}

// Get returns the group with the given name (case-insensitive).
func (rg *RegionGroups) Get(name string) *RegionGroup {
	if rg == nil {
		return nil
	}
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	for _, group := range rg.groups {
		if strings.EqualFold(group.Name, name) {
			g := group
			return &g
		}
	}
	return nil
}

// Upsert updates or adds a group and persists the result.
func (rg *RegionGroups) Upsert(group RegionGroup) error {
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("region group name is required")
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	found := false
	for i, existing := range rg.groups {
		if strings.EqualFold(existing.Name, group.Name) {
			rg.groups[i] = group
			found = true
			break
		}
	}
	if !found {
		rg.groups = append(rg.groups, group)
	}

	return rg.save()
}

// Delete removes a group and persists the result.
func (rg *RegionGroups) Delete(name string) error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	for i, group := range rg.groups {
		if strings.EqualFold(group.Name, name) {
			rg.groups = append(rg.groups[:i], rg.groups[i+1:]...)
			return rg.save()
		}
	}
	return fmt.Errorf("region group not found: %s", name)
}

// Matches reports whether region is the preferred location itself or a
// member of the group named by preferred.
func (rg *RegionGroups) Matches(preferred, region string) bool {
	if region == "" || preferred == "" {
		return false
	}
	if strings.EqualFold(preferred, region) {
		return true
	}
	group := rg.Get(preferred)
	if group == nil {
		return false
	}
	for _, member := range group.Regions {
		if strings.EqualFold(member, region) {
			return true
		}
	}
	return false
}
