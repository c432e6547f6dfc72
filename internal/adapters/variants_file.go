package adapters

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"wv-forge/internal/core"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

const zipKeysField = "zip_keys"

type VariantsFileAdapter struct{}

func NewVariantsFileAdapter() VariantsFileAdapter {
	return VariantsFileAdapter{}
}

// LoadVariants parses a variants.yaml. A missing file yields no axes, which
// expands to a single configuration. List values become axes, zip_keys
// becomes the zip groups and anything else is kept as pass-through.
func (a VariantsFileAdapter) LoadVariants(path string) (types.VariantAxes, error) {
	axes := types.VariantAxes{Axes: map[string][]string{}, Extra: map[string]any{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return axes, nil
		}
		return types.VariantAxes{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read variants file").
			WithCause(err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.VariantAxes{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse variants file").
			WithCause(err)
	}
	if len(doc.Content) == 0 {
		return axes, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return types.VariantAxes{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("variants file must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if key == zipKeysField {
			groups, err := parseZipKeys(value)
			if err != nil {
				return types.VariantAxes{}, err
			}
			axes.ZipKeys = groups
			continue
		}
		if value.Kind != yaml.SequenceNode {
			var extra any
			if err := value.Decode(&extra); err != nil {
				return types.VariantAxes{}, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("failed to parse variants key %s", key)).
					WithCause(err)
			}
			axes.Extra[key] = extra
			continue
		}
		values, err := scalarValues(key, value)
		if err != nil {
			return types.VariantAxes{}, err
		}
		axes.Axes[key] = values
	}
	if err := core.ValidateVariants(axes); err != nil {
		return types.VariantAxes{}, err
	}
	return axes, nil
}

// scalarValues keeps each entry's source text, so 3.10 stays "3.10".
func scalarValues(key string, seq *yaml.Node) ([]string, error) {
	values := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("variant axis %s must list scalar values", key))
		}
		values = append(values, item.Value)
	}
	return values, nil
}

// parseZipKeys accepts both a list of groups and a single flat group.
func parseZipKeys(value *yaml.Node) ([][]string, error) {
	if value.Kind != yaml.SequenceNode {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("zip_keys must be a list")
	}
	var groups [][]string
	var flat []string
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.SequenceNode:
			group, err := scalarValues(zipKeysField, item)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		case yaml.ScalarNode:
			flat = append(flat, item.Value)
		default:
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unsupported zip_keys entry at line %d", item.Line))
		}
	}
	if len(flat) > 0 {
		if len(groups) > 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("zip_keys mixes flat keys and groups")
		}
		groups = append(groups, flat)
	}
	return groups, nil
}

var _ ports.VariantsPort = VariantsFileAdapter{}
