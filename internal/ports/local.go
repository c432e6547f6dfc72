package ports

import (
	"context"

	"wv-forge/internal/types"
)

// ContainerRunnerPort composes and runs a containerized build.
type ContainerRunnerPort interface {
	Command(run types.ContainerRun) ([]string, error)
	Run(ctx context.Context, args []string) error
}

// OutputStorePort inspects and cleans a local output directory.
type OutputStorePort interface {
	IsBuilt(dir string, spec types.PackageSpec, variantCount int) (bool, error)
	Clean(dir string, dryRun bool) ([]string, error)
}
