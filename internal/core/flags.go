package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

const defaultUpstreamChannel = "conda-forge"

// BuildConfig carries the process-wide settings every build shares.
type BuildConfig struct {
	OutputDir string
	Channel   types.ChannelTarget
	// ExtraChannels are resolved after the target channel. Defaults to
	// conda-forge.
	ExtraChannels []string
	Variants      types.VariantAxes
	Jobs          int
	Sccache       bool
	SccacheDir    string
	CudaOverride  string
	// AuthEnv is appended to every build environment.
	AuthEnv []string
}

// SelectBuildFlags returns the arguments and environment for building spec.
// Noarch and standard builds pass channels as flags; variant builds carry
// them inside the variant configuration because the build tool rejects
// both mechanisms at once.
func SelectBuildFlags(spec types.PackageSpec, cfg BuildConfig) (ports.BuildFlags, error) {
	if strings.TrimSpace(spec.RecipePath) == "" {
		return ports.BuildFlags{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("package %s has no recipe path", spec.Name))
	}
	args := []string{
		"build",
		"--recipe", spec.RecipePath,
		"--output-dir", cfg.OutputDir,
		"--skip-existing", "all",
	}
	flags := ports.BuildFlags{Env: buildEnv(cfg)}
	switch spec.Kind {
	case types.BuildKindNoarch:
		args = append(args, "--ignore-recipe-variants")
		args = append(args, channelArgs(cfg)...)
	case types.BuildKindVariant:
		flags.VariantOverride = variantOverride(cfg)
	case types.BuildKindStandard:
		args = append(args, channelArgs(cfg)...)
	default:
		return ports.BuildFlags{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown build kind %q for package %s", spec.Kind, spec.Name))
	}
	flags.Args = args
	return flags, nil
}

func channels(cfg BuildConfig) []string {
	var out []string
	if cfg.Channel.URL != "" {
		out = append(out, cfg.Channel.URL)
	}
	extra := cfg.ExtraChannels
	if len(extra) == 0 {
		extra = []string{defaultUpstreamChannel}
	}
	return append(out, extra...)
}

func channelArgs(cfg BuildConfig) []string {
	var args []string
	for _, channel := range channels(cfg) {
		args = append(args, "-c", channel)
	}
	return args
}

// variantOverride merges the declared axes with channel_sources so the
// build tool resolves from the target channel first.
func variantOverride(cfg BuildConfig) map[string]any {
	override := map[string]any{}
	for key, value := range cfg.Variants.Extra {
		override[key] = value
	}
	for key, values := range cfg.Variants.Axes {
		override[key] = append([]string(nil), values...)
	}
	if len(cfg.Variants.ZipKeys) > 0 {
		override["zip_keys"] = cfg.Variants.ZipKeys
	}
	override["channel_sources"] = []string{strings.Join(channels(cfg), ",")}
	return override
}

func buildEnv(cfg BuildConfig) []string {
	var env []string
	if cfg.Jobs > 0 {
		jobs := strconv.Itoa(cfg.Jobs)
		env = append(env,
			"CPU_COUNT="+jobs,
			"CMAKE_BUILD_PARALLEL_LEVEL="+jobs,
			"MAX_JOBS="+jobs,
		)
	}
	if cfg.Sccache {
		env = append(env,
			"SCCACHE_ENABLED=1",
			"CMAKE_C_COMPILER_LAUNCHER=sccache",
			"CMAKE_CXX_COMPILER_LAUNCHER=sccache",
			"CMAKE_CUDA_COMPILER_LAUNCHER=sccache",
		)
		if cfg.SccacheDir != "" {
			env = append(env, "SCCACHE_DIR="+cfg.SccacheDir)
		}
	} else {
		env = append(env, "SCCACHE_ENABLED=0")
	}
	if cfg.CudaOverride != "" {
		env = append(env, "CONDA_OVERRIDE_CUDA="+cfg.CudaOverride)
	}
	return append(env, cfg.AuthEnv...)
}
