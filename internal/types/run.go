package types

import "time"

// Marker delimits the artifacts produced by one level. It is created when
// the level starts and passed explicitly to the publish step. CreatedAt is
// a filesystem timestamp so it compares against artifact mtimes from the
// same clock.
type Marker struct {
	Level     int
	CreatedAt time.Time
}

// Contains reports whether a file modified at modTime belongs to the level.
// A file stamped in the same clock tick as the marker belongs to it.
func (m Marker) Contains(modTime time.Time) bool {
	return !modTime.Before(m.CreatedAt)
}

type BuildResult struct {
	Name     string
	OK       bool
	Duration time.Duration
	Err      error
}

type LevelSummary struct {
	Name      string
	Built     []string
	Failed    []string
	Published int
	Present   int
	Skipped   bool
}

type RunSummary struct {
	RunID    string
	Results  []BuildResult
	Failures []string
	Levels   []LevelSummary
}

// Published returns the number of artifacts newly pushed across all levels.
func (s RunSummary) Published() int {
	total := 0
	for _, level := range s.Levels {
		total += level.Published
	}
	return total
}
