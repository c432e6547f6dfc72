package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"wv-forge/internal/types"
)

// variantUnit is one dimension of the cross product: either a single axis
// or a group of zipped axes that advance together.
type variantUnit struct {
	keys   []string
	values [][]string
	size   int
}

// ExpandVariants returns the cross product of all axes. Zipped axes take
// their values pairwise instead of multiplying. With no axes the result is
// a single empty configuration.
func ExpandVariants(axes types.VariantAxes) ([]types.VariantConfig, error) {
	units, err := variantUnits(axes)
	if err != nil {
		return nil, err
	}
	total := 1
	for _, unit := range units {
		total *= unit.size
	}
	configs := make([]types.VariantConfig, 0, total)
	if total == 0 {
		return configs, nil
	}
	index := make([]int, len(units))
	for {
		config := types.VariantConfig{}
		for u, unit := range units {
			for k, key := range unit.keys {
				config[key] = unit.values[k][index[u]]
			}
		}
		configs = append(configs, config)
		u := len(units) - 1
		for u >= 0 {
			index[u]++
			if index[u] < units[u].size {
				break
			}
			index[u] = 0
			u--
		}
		if u < 0 {
			return configs, nil
		}
	}
}

// CountVariants returns how many configurations ExpandVariants produces.
func CountVariants(axes types.VariantAxes) (int, error) {
	units, err := variantUnits(axes)
	if err != nil {
		return 0, err
	}
	total := 1
	for _, unit := range units {
		total *= unit.size
	}
	return total, nil
}

// ValidateVariants checks zip groups and python axis values without
// expanding the matrix.
func ValidateVariants(axes types.VariantAxes) error {
	_, err := variantUnits(axes)
	return err
}

func variantUnits(axes types.VariantAxes) ([]variantUnit, error) {
	if err := validatePythonAxis(axes.Axes); err != nil {
		return nil, err
	}
	zipped := map[string]int{}
	var units []variantUnit
	for g, group := range axes.ZipKeys {
		if len(group) < 2 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("zip_keys group %d needs at least two keys", g))
		}
		keys := append([]string(nil), group...)
		sort.Strings(keys)
		unit := variantUnit{keys: keys, size: -1}
		for _, key := range keys {
			if prev, ok := zipped[key]; ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("zip_keys key %q appears in groups %d and %d", key, prev, g))
			}
			zipped[key] = g
			values, ok := axes.Axes[key]
			if !ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("zip_keys references unknown axis %q", key))
			}
			if unit.size >= 0 && len(values) != unit.size {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("zip_keys group [%s] has unequal lengths: %s", strings.Join(keys, ", "), zipLengths(axes.Axes, keys)))
			}
			unit.size = len(values)
			unit.values = append(unit.values, values)
		}
		units = append(units, unit)
	}
	for key, values := range axes.Axes {
		if _, ok := zipped[key]; ok {
			continue
		}
		units = append(units, variantUnit{keys: []string{key}, values: [][]string{values}, size: len(values)})
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].keys[0] < units[j].keys[0]
	})
	return units, nil
}

func zipLengths(axes map[string][]string, keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, len(axes[key])))
	}
	return strings.Join(parts, " ")
}

// validatePythonAxis requires every python value to start with a PEP 440
// version, e.g. "3.11" or "3.11.* *_cpython".
func validatePythonAxis(axes map[string][]string) error {
	for _, value := range axes["python"] {
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("python axis has an empty value")
		}
		version := strings.TrimSuffix(fields[0], ".*")
		if _, err := pep440.Parse(version); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("python axis value %q is not a PEP 440 version", value)).
				WithCause(err)
		}
	}
	return nil
}
