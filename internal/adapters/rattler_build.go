package adapters

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"wv-forge/internal/ports"
	"wv-forge/internal/shared"
	"wv-forge/internal/types"
)

const defaultRattlerBuild = "rattler-build"

// RattlerBuildAdapter invokes the external conda build tool once per
// package. Tool output is streamed to Output as it is produced.
type RattlerBuildAdapter struct {
	Binary string
	Output io.Writer
	// TempDir holds generated variant configs. Empty means os.TempDir.
	TempDir string
}

func NewRattlerBuildAdapter(binary string, output io.Writer) RattlerBuildAdapter {
	if binary == "" {
		binary = defaultRattlerBuild
	}
	if output == nil {
		output = os.Stderr
	}
	return RattlerBuildAdapter{Binary: binary, Output: output}
}

func (a RattlerBuildAdapter) Build(ctx context.Context, spec types.PackageSpec, flags ports.BuildFlags) types.BuildResult {
	start := time.Now()
	result := types.BuildResult{Name: spec.Name}
	args := append([]string(nil), flags.Args...)
	if flags.VariantOverride != nil {
		path, cleanup, err := a.writeVariantConfig(spec.Name, flags.VariantOverride)
		if err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
		defer cleanup()
		args = append(args, "--variant-config", path)
	}
	zerolog.Ctx(ctx).Debug().Str("package", spec.Name).Strs("args", args).Msg("running build tool")
	cmd := exec.CommandContext(ctx, a.binary(), args...)
	cmd.Env = append(os.Environ(), flags.Env...)
	cmd.Stdout = a.output()
	cmd.Stderr = a.output()
	err := cmd.Run()
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("build of %s failed", spec.Name)).
			WithCause(err)
		return result
	}
	result.OK = true
	return result
}

func (a RattlerBuildAdapter) EnsureTool(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = a.binary()
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s not found on PATH", name)).
			WithCause(err)
	}
	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s is not runnable", name)).
			WithCause(shared.CommandError(output, err))
	}
	zerolog.Ctx(ctx).Debug().Str("tool", path).Msg(string(trimLine(output)))
	return path, nil
}

func (a RattlerBuildAdapter) writeVariantConfig(name string, override map[string]any) (string, func(), error) {
	dir, err := os.MkdirTemp(a.TempDir, "wv-forge-variants-")
	if err != nil {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create variant config dir").
			WithCause(err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	data, err := yaml.Marshal(override)
	if err != nil {
		cleanup()
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode variant config").
			WithCause(err)
	}
	path := filepath.Join(dir, name+"-variants.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		cleanup()
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write variant config").
			WithCause(err)
	}
	return path, cleanup, nil
}

func (a RattlerBuildAdapter) binary() string {
	if a.Binary == "" {
		return defaultRattlerBuild
	}
	return a.Binary
}

func (a RattlerBuildAdapter) output() io.Writer {
	if a.Output == nil {
		return os.Stderr
	}
	return a.Output
}

func trimLine(output []byte) []byte {
	for i, b := range output {
		if b == '\n' {
			return output[:i]
		}
	}
	return output
}

var _ ports.BuilderPort = RattlerBuildAdapter{}
var _ ports.ToolPort = RattlerBuildAdapter{}
