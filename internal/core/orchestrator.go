package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// FlagSelector maps a package to the flags of its external build.
type FlagSelector func(spec types.PackageSpec) (ports.BuildFlags, error)

// Orchestrator builds levels in order and publishes what each level
// produced before starting the next one, so later levels can resolve the
// artifacts from the channel.
type Orchestrator struct {
	Builder   ports.BuilderPort
	Scanner   ports.ArtifactScannerPort
	Publisher ports.ChannelPublisherPort
	Flags     FlagSelector
	OutputDir string
	// Parallel bounds concurrent builds inside a level. Values below two
	// build sequentially.
	Parallel  int
	NoPublish bool
}

// Run drives every level. Build failures are collected and never stop the
// run; a publish error or an invalid package stops it immediately, and a
// cancelled context stops it before the next publish. The returned error
// is non-nil when any package failed.
func (o Orchestrator) Run(ctx context.Context, levels []types.Level, requested []string) (types.RunSummary, error) {
	logger := zerolog.Ctx(ctx)
	summary := types.RunSummary{}
	set := NameSet(requested)

	resolution := Resolve(levels, requested)
	for _, name := range resolution.Unknown {
		logger.Warn().Str("package", name).Msg("requested package is not in any level")
	}

	flags, err := o.selectAll(levels)
	if err != nil {
		return summary, err
	}

	for i, declared := range levels {
		level := FilterLevel(declared, set)
		levelSummary := types.LevelSummary{Name: levelName(declared, i)}
		if len(level.Packages) == 0 {
			levelSummary.Skipped = true
			summary.Levels = append(summary.Levels, levelSummary)
			logger.Debug().Str("level", levelSummary.Name).Msg("no requested packages in level, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var marker types.Marker
		if !o.NoPublish {
			marker, err = o.Scanner.Mark(o.OutputDir, i)
			if err != nil {
				return summary, err
			}
		}
		logger.Info().
			Str("level", levelSummary.Name).
			Strs("packages", level.Names()).
			Msg("building level")

		results := o.buildLevel(ctx, level, flags)
		for _, result := range results {
			summary.Results = append(summary.Results, result)
			if result.OK {
				levelSummary.Built = append(levelSummary.Built, result.Name)
				continue
			}
			levelSummary.Failed = append(levelSummary.Failed, result.Name)
			summary.Failures = append(summary.Failures, result.Name)
		}
		if err := ctx.Err(); err != nil {
			summary.Levels = append(summary.Levels, levelSummary)
			logger.Warn().Str("level", levelSummary.Name).Msg("run cancelled, skipping publish")
			return summary, err
		}

		if !o.NoPublish {
			published, present, err := o.publishLevel(ctx, levelSummary.Name, marker)
			levelSummary.Published = published
			levelSummary.Present = present
			if err != nil {
				summary.Levels = append(summary.Levels, levelSummary)
				return summary, err
			}
		}
		summary.Levels = append(summary.Levels, levelSummary)
	}

	if len(summary.Failures) > 0 {
		return summary, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("build failures: %s", strings.Join(summary.Failures, ", ")))
	}
	return summary, nil
}

func (o Orchestrator) selectAll(levels []types.Level) (map[string]ports.BuildFlags, error) {
	flags := map[string]ports.BuildFlags{}
	for _, level := range levels {
		for _, spec := range level.Packages {
			if !spec.Kind.Valid() {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("unknown build kind %q for package %s", spec.Kind, spec.Name))
			}
			selected, err := o.Flags(spec)
			if err != nil {
				return nil, err
			}
			flags[spec.Name] = selected
		}
	}
	return flags, nil
}

func (o Orchestrator) buildLevel(ctx context.Context, level types.Level, flags map[string]ports.BuildFlags) []types.BuildResult {
	logger := zerolog.Ctx(ctx)
	results := make([]types.BuildResult, len(level.Packages))
	build := func(i int, spec types.PackageSpec) {
		if err := ctx.Err(); err != nil {
			results[i] = types.BuildResult{Name: spec.Name, Err: err}
			return
		}
		logger.Info().Str("package", spec.Name).Str("kind", string(spec.Kind)).Msg("building package")
		result := o.Builder.Build(ctx, spec, flags[spec.Name])
		result.Name = spec.Name
		if result.OK {
			logger.Info().Str("package", spec.Name).Dur("duration", result.Duration).Msg("package built")
		} else {
			logger.Error().Err(result.Err).Str("package", spec.Name).Msg("package build failed")
		}
		results[i] = result
	}

	if o.Parallel < 2 {
		for i, spec := range level.Packages {
			build(i, spec)
		}
		return results
	}
	var group errgroup.Group
	group.SetLimit(o.Parallel)
	for i, spec := range level.Packages {
		group.Go(func() error {
			build(i, spec)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (o Orchestrator) publishLevel(ctx context.Context, name string, marker types.Marker) (int, int, error) {
	logger := zerolog.Ctx(ctx)
	artifacts, err := o.Scanner.Since(o.OutputDir, marker)
	if err != nil {
		return 0, 0, err
	}
	published, present := 0, 0
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return published, present, err
		}
		outcome, err := o.Publisher.Publish(ctx, artifact)
		if err != nil {
			logger.Error().Err(err).Str("artifact", artifact.FileName).Msg("publish failed")
			return published, present, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("publish failed for %s", artifact.FileName)).
				WithCause(err)
		}
		switch outcome {
		case types.PublishOutcomeAlreadyPresent:
			present++
			logger.Debug().Str("artifact", artifact.FileName).Msg("artifact already on channel")
		default:
			published++
			logger.Info().Str("artifact", artifact.FileName).Msg("artifact published")
		}
	}
	if published == 0 {
		logger.Warn().Str("level", name).Int("already_present", present).Msg("level published no new artifacts")
	} else {
		logger.Info().Str("level", name).Int("published", published).Int("already_present", present).Msg("level published")
	}
	return published, present, nil
}

func levelName(level types.Level, index int) string {
	if strings.TrimSpace(level.Name) != "" {
		return level.Name
	}
	return fmt.Sprintf("level-%d", index+1)
}
