package app

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"

	"wv-forge/internal/core"
	"wv-forge/internal/types"
)

// DefaultChannelSubdirs are initialized when no subdirs are requested.
var DefaultChannelSubdirs = []string{"noarch", "linux-64", "linux-aarch64", "osx-64", "osx-arm64", "win-64"}

// List reports every manifest package with its build status and the
// newest version found in the output directory.
func (s Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	manifest, err := s.Manifest.LoadManifest(req.ManifestPath)
	if err != nil {
		return ListResult{}, err
	}
	axes, err := s.loadVariants(req.VariantsPath)
	if err != nil {
		return ListResult{}, err
	}
	count, err := core.CountVariants(axes)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{VariantCount: count}

	latest := map[string]string{}
	if strings.TrimSpace(req.OutputDir) != "" {
		artifacts, err := s.Inventory.All(req.OutputDir)
		if err != nil {
			return ListResult{}, err
		}
		for _, artifact := range core.LatestArtifacts(artifacts) {
			latest[artifact.Name] = artifact.Version
		}
	}

	listed := map[string]struct{}{}
	for i, level := range manifest.Levels {
		name := level.Name
		if strings.TrimSpace(name) == "" {
			name = "level-" + strconv.Itoa(i+1)
		}
		for _, spec := range level.Packages {
			listed[spec.Name] = struct{}{}
			entry := ListEntry{Level: name, Spec: spec, Latest: latest[spec.Name]}
			if strings.TrimSpace(req.OutputDir) != "" {
				built, err := s.Outputs.IsBuilt(req.OutputDir, spec, count)
				if err != nil {
					return ListResult{}, err
				}
				entry.Built = built
			}
			result.Entries = append(result.Entries, entry)
		}
	}

	if strings.TrimSpace(req.RepoRoot) != "" && s.Discovery != nil {
		discovered, err := s.Discovery.Discover(req.RepoRoot)
		if err != nil {
			return ListResult{}, err
		}
		for _, spec := range discovered {
			if _, ok := listed[spec.Name]; !ok {
				result.Unlisted = append(result.Unlisted, spec.Name)
			}
		}
		sort.Strings(result.Unlisted)
		if len(result.Unlisted) > 0 {
			zerolog.Ctx(ctx).Warn().Strs("packages", result.Unlisted).Msg("recipes on disk are not in the manifest")
		}
	}
	return result, nil
}

// Variants expands the variant matrix.
func (s Service) Variants(_ context.Context, req VariantsRequest) (VariantsResult, error) {
	axes, err := s.loadVariants(req.VariantsPath)
	if err != nil {
		return VariantsResult{}, err
	}
	configs, err := core.ExpandVariants(axes)
	if err != nil {
		return VariantsResult{}, err
	}
	keys := make([]string, 0, len(axes.Axes))
	for key := range axes.Axes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return VariantsResult{Configs: configs, Keys: keys}, nil
}

// Clean removes built package subdirectories from the output directory.
func (s Service) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	if strings.TrimSpace(req.OutputDir) == "" {
		return CleanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	removed, err := s.Outputs.Clean(req.OutputDir, req.DryRun)
	if err != nil {
		return CleanResult{Removed: removed, DryRun: req.DryRun}, err
	}
	for _, path := range removed {
		zerolog.Ctx(ctx).Info().Str("path", path).Bool("dry_run", req.DryRun).Msg("removed build output")
	}
	return CleanResult{Removed: removed, DryRun: req.DryRun}, nil
}

// InitChannel writes empty index files so a fresh channel can be used as
// a dependency source.
func (s Service) InitChannel(ctx context.Context, req InitChannelRequest) (InitChannelResult, error) {
	target, err := core.ParseChannelTarget(req.ChannelURL)
	if err != nil {
		return InitChannelResult{}, err
	}
	registerSecrets(req.ChannelRequest)
	subdirs := req.Subdirs
	if len(subdirs) == 0 {
		subdirs = DefaultChannelSubdirs
	}
	for _, subdir := range subdirs {
		if !types.IsPlatformSubdir(subdir) {
			return InitChannelResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unknown platform subdir: " + subdir)
		}
	}
	env, cleanup, err := s.authenticate(ctx, target, req.ChannelRequest)
	if err != nil {
		return InitChannelResult{}, err
	}
	defer cleanup()
	channel, err := s.Channels(target, channelOptions(req.ChannelRequest, env))
	if err != nil {
		return InitChannelResult{}, err
	}
	if err := channel.InitChannel(ctx, subdirs); err != nil {
		return InitChannelResult{}, err
	}
	return InitChannelResult{Channel: target, Subdirs: subdirs}, nil
}
