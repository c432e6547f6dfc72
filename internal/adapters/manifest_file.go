package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"wv-forge/internal/core"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

// LoadManifest reads the leveled package list. Recipe paths are relative
// to the manifest's directory; a package without an explicit kind is
// classified from its recipe file.
func (a ManifestFileAdapter) LoadManifest(path string) (types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("package manifest not found").
			WithCause(err)
	}
	var manifest types.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse package manifest").
			WithCause(err)
	}
	if len(manifest.Levels) == 0 {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package manifest declares no levels")
	}
	root := filepath.Dir(path)
	seen := map[string]int{}
	for i := range manifest.Levels {
		level := &manifest.Levels[i]
		for j := range level.Packages {
			spec := &level.Packages[j]
			if err := normalizeSpec(root, spec); err != nil {
				return types.Manifest{}, err
			}
			if prev, ok := seen[spec.Name]; ok {
				return types.Manifest{}, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("package %s declared in levels %d and %d", spec.Name, prev+1, i+1))
			}
			seen[spec.Name] = i
		}
	}
	return manifest, nil
}

func normalizeSpec(root string, spec *types.PackageSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package entry has no name")
	}
	recipe := strings.TrimSpace(spec.RecipePath)
	if recipe == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("package %s has no recipe path", spec.Name))
	}
	if !filepath.IsAbs(recipe) {
		recipe = filepath.Join(root, recipe)
	}
	spec.RecipePath = recipe
	if strings.TrimSpace(string(spec.Kind)) != "" {
		kind, err := types.ParseBuildKind(string(spec.Kind))
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("package %s: unknown build kind %q", spec.Name, spec.Kind)).
				WithCause(err)
		}
		spec.Kind = kind
		return nil
	}
	content, err := os.ReadFile(recipeFile(recipe))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("recipe for %s not found", spec.Name)).
			WithCause(err)
	}
	spec.Kind = core.DetectBuildKind(string(content))
	return nil
}

// recipeFile accepts either a recipe directory or the recipe.yaml itself.
func recipeFile(path string) string {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return path
	}
	return filepath.Join(path, "recipe.yaml")
}

var _ ports.ManifestPort = ManifestFileAdapter{}
