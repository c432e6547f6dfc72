package core

import (
	"sort"
	"strings"

	"wv-forge/internal/types"
)

// Resolution is the result of filtering the declared levels by name.
type Resolution struct {
	Levels []types.Level
	// Unknown lists requested names that matched no declared package.
	Unknown []string
}

// Resolve filters every level down to the requested names. An empty
// request returns all levels unchanged. Level and intra-level order are
// preserved and levels left empty by the filter are dropped.
func Resolve(levels []types.Level, requested []string) Resolution {
	set := NameSet(requested)
	if len(set) == 0 {
		out := make([]types.Level, len(levels))
		copy(out, levels)
		return Resolution{Levels: out}
	}
	known := map[string]struct{}{}
	out := make([]types.Level, 0, len(levels))
	for _, level := range levels {
		for _, spec := range level.Packages {
			known[spec.Name] = struct{}{}
		}
		filtered := FilterLevel(level, set)
		if len(filtered.Packages) == 0 {
			continue
		}
		out = append(out, filtered)
	}
	var unknown []string
	for name := range set {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return Resolution{Levels: out, Unknown: unknown}
}

// FilterLevel keeps the specs whose name is in set. A nil or empty set
// keeps everything.
func FilterLevel(level types.Level, set map[string]struct{}) types.Level {
	if len(set) == 0 {
		return level
	}
	filtered := types.Level{Name: level.Name}
	for _, spec := range level.Packages {
		if _, ok := set[spec.Name]; ok {
			filtered.Packages = append(filtered.Packages, spec)
		}
	}
	return filtered
}

// NameSet builds a lookup set from names, ignoring blanks.
func NameSet(names []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
