package ports

import "wv-forge/internal/types"

type ManifestPort interface {
	LoadManifest(path string) (types.Manifest, error)
}

// RecipeDiscoveryPort finds recipes on disk independent of the manifest.
type RecipeDiscoveryPort interface {
	Discover(root string) ([]types.PackageSpec, error)
}

type VariantsPort interface {
	LoadVariants(path string) (types.VariantAxes, error)
}
