package ports

import (
	"context"

	"wv-forge/internal/types"
)

// BuildFlags is the argument list and environment for one external build.
type BuildFlags struct {
	Args []string
	Env  []string
	// VariantOverride, when set, is written to a temporary variant config
	// file passed with --variant-config.
	VariantOverride map[string]any
}

// BuilderPort runs exactly one external build. Failures are reported in
// the result, never returned as errors.
type BuilderPort interface {
	Build(ctx context.Context, spec types.PackageSpec, flags BuildFlags) types.BuildResult
}

// ToolPort checks that an external binary is available.
type ToolPort interface {
	EnsureTool(ctx context.Context, name string) (string, error)
}
