package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// cleanSubdirs are removed by Clean. Source and work caches are kept.
var cleanSubdirs = []string{"linux-64", "noarch", "broken"}

type OutputStoreAdapter struct{}

func NewOutputStoreAdapter() OutputStoreAdapter {
	return OutputStoreAdapter{}
}

// IsBuilt reports whether dir already holds outputs for spec. Noarch
// packages are looked up in noarch, all others in linux-64; a variant
// package needs one artifact per variant configuration.
func (a OutputStoreAdapter) IsBuilt(dir string, spec types.PackageSpec, variantCount int) (bool, error) {
	subdir := "linux-64"
	if spec.Kind == types.BuildKindNoarch {
		subdir = "noarch"
	}
	matches, err := filepath.Glob(filepath.Join(dir, subdir, globEscape(spec.Name)+"-*.conda"))
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan output directory").
			WithCause(err)
	}
	if spec.Kind == types.BuildKindVariant {
		if variantCount < 1 {
			variantCount = 1
		}
		return len(matches) >= variantCount, nil
	}
	return len(matches) >= 1, nil
}

// Clean removes the built package subdirectories and returns the ones that
// existed. With dryRun nothing is removed.
func (a OutputStoreAdapter) Clean(dir string, dryRun bool) ([]string, error) {
	var removed []string
	for _, name := range cleanSubdirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		removed = append(removed, path)
		if dryRun {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to remove " + path).
				WithCause(err)
		}
	}
	return removed, nil
}

func globEscape(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch r {
		case '*', '?', '[', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

var _ ports.OutputStorePort = OutputStoreAdapter{}
