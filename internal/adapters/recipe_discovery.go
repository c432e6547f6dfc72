package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/core"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

type RecipeDiscoveryAdapter struct{}

func NewRecipeDiscoveryAdapter() RecipeDiscoveryAdapter {
	return RecipeDiscoveryAdapter{}
}

// Discover lists pkgs/<name> directories holding recipe/recipe.yaml or a
// top-level recipe.yaml, sorted by name.
func (a RecipeDiscoveryAdapter) Discover(root string) ([]types.PackageSpec, error) {
	pkgsDir := filepath.Join(root, "pkgs")
	entries, err := os.ReadDir(pkgsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read pkgs directory").
			WithCause(err)
	}
	var specs []types.PackageSpec
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(pkgsDir, entry.Name())
		recipeDir := filepath.Join(dir, "recipe")
		content, err := os.ReadFile(filepath.Join(recipeDir, "recipe.yaml"))
		if err != nil {
			recipeDir = dir
			content, err = os.ReadFile(filepath.Join(recipeDir, "recipe.yaml"))
			if err != nil {
				continue
			}
		}
		specs = append(specs, types.PackageSpec{
			Name:       entry.Name(),
			Kind:       core.DetectBuildKind(string(content)),
			RecipePath: recipeDir,
		})
	}
	return specs, nil
}

var _ ports.RecipeDiscoveryPort = RecipeDiscoveryAdapter{}
