package app

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"

	"wv-forge/internal/core"
	"wv-forge/internal/types"
)

// Local builds a selection of recipes inside the conda-forge build
// container and then publishes the output directory unless NoUpload is
// set. Already-built packages are skipped unless Clean wiped them.
func (s Service) Local(ctx context.Context, req LocalRequest) (LocalResult, error) {
	logger := zerolog.Ctx(ctx)
	repoRoot := strings.TrimSpace(req.RepoRoot)
	if repoRoot == "" {
		repoRoot = "."
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join(repoRoot, "output")
	}
	result := LocalResult{DryRun: req.DryRun}

	packages, err := s.Discovery.Discover(repoRoot)
	if err != nil {
		return result, err
	}
	if len(packages) == 0 {
		return result, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no packages found in pkgs/")
	}
	axes, err := s.loadVariants(req.VariantsPath)
	if err != nil {
		return result, err
	}
	variantCount, err := core.CountVariants(axes)
	if err != nil {
		return result, err
	}

	if req.Clean {
		removed, err := s.Outputs.Clean(outputDir, req.DryRun)
		if err != nil {
			return result, err
		}
		result.Removed = removed
	}

	selected, err := s.selectLocal(req, packages, outputDir, variantCount)
	if err != nil {
		return result, err
	}
	if len(selected) == 0 {
		logger.Info().Msg("no packages selected")
		return result, nil
	}
	if !req.Clean {
		var toBuild []types.PackageSpec
		for _, spec := range selected {
			built, err := s.Outputs.IsBuilt(outputDir, spec, variantCount)
			if err != nil {
				return result, err
			}
			if built {
				result.Skipped = append(result.Skipped, spec)
				continue
			}
			toBuild = append(toBuild, spec)
		}
		selected = toBuild
		if len(result.Skipped) > 0 {
			logger.Info().Strs("packages", specNames(result.Skipped)).Msg("skipping already-built packages")
		}
	}
	result.Selected = selected
	if len(selected) == 0 {
		logger.Info().Msg("all selected packages are already built; use --clean to rebuild")
		return result, nil
	}

	command, err := s.Containers.Command(types.ContainerRun{
		Image:       req.Image,
		RepoRoot:    repoRoot,
		OutputDir:   outputDir,
		Packages:    selected,
		Sccache:     !req.NoSccache,
		Jobs:        req.Jobs,
		Interactive: req.Interactive,
		Forward:     req.Forward,
	})
	if err != nil {
		return result, err
	}
	result.Command = command
	if req.DryRun {
		return result, nil
	}

	logger.Info().Strs("packages", specNames(selected)).Msg("launching container build")
	if err := s.Containers.Run(ctx, command); err != nil {
		return result, err
	}
	if req.NoUpload {
		return result, nil
	}
	published, err := s.Publish(ctx, PublishRequest{
		ChannelRequest: req.Publish,
		OutputDir:      outputDir,
		Packages:       specNames(selected),
	})
	result.Publish = &published
	return result, err
}

func (s Service) selectLocal(req LocalRequest, packages []types.PackageSpec, outputDir string, variantCount int) ([]types.PackageSpec, error) {
	switch {
	case req.All:
		return packages, nil
	case req.NoarchOnly:
		return filterKind(packages, types.BuildKindNoarch), nil
	case req.VariantOnly:
		return filterKind(packages, types.BuildKindVariant), nil
	case len(req.Packages) > 0:
		set := core.NameSet(req.Packages)
		var selected []types.PackageSpec
		for _, spec := range packages {
			if _, ok := set[spec.Name]; ok {
				selected = append(selected, spec)
				delete(set, spec.Name)
			}
		}
		if len(set) > 0 {
			unknown := make([]string, 0, len(set))
			for name := range set {
				unknown = append(unknown, name)
			}
			sort.Strings(unknown)
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unknown packages: " + strings.Join(unknown, ", ") + "; available: " + strings.Join(specNames(packages), ", "))
		}
		return selected, nil
	}
	if req.Select == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no packages selected; pass names, --all, --noarch-only or --variant-only")
	}
	candidates := make([]LocalCandidate, 0, len(packages))
	for _, spec := range packages {
		built, err := s.Outputs.IsBuilt(outputDir, spec, variantCount)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, LocalCandidate{Spec: spec, Built: built})
	}
	return req.Select(candidates)
}

func filterKind(packages []types.PackageSpec, kind types.BuildKind) []types.PackageSpec {
	var out []types.PackageSpec
	for _, spec := range packages {
		if spec.Kind == kind {
			out = append(out, spec)
		}
	}
	return out
}

func specNames(specs []types.PackageSpec) []string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}
