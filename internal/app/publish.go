package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"

	"wv-forge/internal/core"
	"wv-forge/internal/types"
)

// Publish pushes every artifact in the output directory to the channel.
// Artifacts already on the channel count as present, not as errors.
func (s Service) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return PublishResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	target, err := core.ParseChannelTarget(req.ChannelURL)
	if err != nil {
		return PublishResult{}, err
	}
	registerSecrets(req.ChannelRequest)
	logger := zerolog.Ctx(ctx)

	artifacts, err := s.Inventory.All(outputDir)
	if err != nil {
		return PublishResult{}, err
	}
	artifacts = filterArtifacts(artifacts, req.Packages)
	result := PublishResult{Artifacts: artifacts, DryRun: req.DryRun}
	if len(artifacts) == 0 {
		logger.Warn().Str("output", outputDir).Msg("no artifacts to publish")
		return result, nil
	}
	if req.DryRun {
		for _, artifact := range artifacts {
			logger.Info().Str("artifact", artifact.FileName).Str("subdir", artifact.Subdir).Msg("would publish")
		}
		return result, nil
	}

	env, cleanup, err := s.authenticate(ctx, target, req.ChannelRequest)
	if err != nil {
		return result, err
	}
	defer cleanup()
	channel, err := s.Channels(target, channelOptions(req.ChannelRequest, env))
	if err != nil {
		return result, err
	}
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := channel.Publish(ctx, artifact)
		if err != nil {
			return result, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("publish failed for %s", artifact.FileName)).
				WithCause(err)
		}
		if outcome == types.PublishOutcomeAlreadyPresent {
			result.Present++
			logger.Debug().Str("artifact", artifact.FileName).Msg("artifact already on channel")
			continue
		}
		result.Published++
		logger.Info().Str("artifact", artifact.FileName).Msg("artifact published")
	}
	logger.Info().
		Str("channel", target.URL).
		Int("published", result.Published).
		Int("already_present", result.Present).
		Msg("publish complete")
	return result, nil
}

func filterArtifacts(artifacts []types.Artifact, names []string) []types.Artifact {
	set := core.NameSet(names)
	if len(set) == 0 {
		return artifacts
	}
	var out []types.Artifact
	for _, artifact := range artifacts {
		if _, ok := set[artifact.Name]; ok {
			out = append(out, artifact)
		}
	}
	return out
}
