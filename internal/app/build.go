package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"

	"wv-forge/internal/core"
	"wv-forge/internal/logging"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// Build runs the leveled build: check the tool, prepare credentials, then
// build and publish level by level. The summary is returned even when the
// error is non-nil.
func (s Service) Build(ctx context.Context, req BuildRequest) (types.RunSummary, error) {
	runID := s.runID()
	logger := zerolog.Ctx(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)
	summary := types.RunSummary{RunID: runID}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return summary, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	if strings.TrimSpace(req.ManifestPath) == "" {
		return summary, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package manifest is required")
	}
	target, err := core.ParseChannelTarget(req.ChannelURL)
	if err != nil {
		return summary, err
	}
	registerSecrets(req.ChannelRequest)

	manifest, err := s.Manifest.LoadManifest(req.ManifestPath)
	if err != nil {
		return summary, err
	}
	axes, err := s.loadVariants(req.VariantsPath)
	if err != nil {
		return summary, err
	}

	builder, tools := s.Builders(req.RattlerBuild)
	logger.Info().Str("tool", req.RattlerBuild).Msg("checking build tool")
	toolPath, err := tools.EnsureTool(ctx, req.RattlerBuild)
	if err != nil {
		return summary, err
	}
	logger.Debug().Str("path", toolPath).Msg("build tool available")

	authEnv, cleanup, err := s.authenticate(ctx, target, req.ChannelRequest)
	if err != nil {
		return summary, err
	}
	defer cleanup()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return summary, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output directory").
			WithCause(err)
	}

	cfg := core.BuildConfig{
		OutputDir:     outputDir,
		Channel:       target,
		ExtraChannels: req.ExtraChannels,
		Variants:      axes,
		Jobs:          req.BuildJobs,
		Sccache:       req.Sccache,
		SccacheDir:    sccacheDir(req.SccacheDir),
		CudaOverride:  req.CudaOverride,
		AuthEnv:       authEnv,
	}
	var publisher ports.ChannelPublisherPort
	if !req.NoPublish {
		publisher, err = s.Channels(target, channelOptions(req.ChannelRequest, authEnv))
		if err != nil {
			return summary, err
		}
	}
	orchestrator := core.Orchestrator{
		Builder:   builder,
		Scanner:   s.Scanner,
		Publisher: publisher,
		Flags: func(spec types.PackageSpec) (ports.BuildFlags, error) {
			return core.SelectBuildFlags(spec, cfg)
		},
		OutputDir: outputDir,
		Parallel:  req.Parallel,
		NoPublish: req.NoPublish,
	}

	logger.Info().
		Str("channel", target.URL).
		Int("levels", len(manifest.Levels)).
		Int("parallel", req.Parallel).
		Bool("publish", !req.NoPublish).
		Msg("starting build")
	summary, err = orchestrator.Run(ctx, manifest.Levels, req.Packages)
	summary.RunID = runID
	logSummary(logger, summary, err)
	return summary, err
}

// authenticate writes the ephemeral auth file for s3 channels. Missing
// credentials are a warning: anonymous reads may still work.
func (s Service) authenticate(ctx context.Context, target types.ChannelTarget, req ChannelRequest) ([]string, func(), error) {
	logger := zerolog.Ctx(ctx)
	if target.Kind == types.ChannelKindPrefix && strings.TrimSpace(req.PrefixAPIKey) == "" {
		logger.Warn().Str("channel", target.URL).Msg("prefix API key not set; publishing to the channel will likely fail")
	}
	if target.Kind != types.ChannelKindS3 {
		return nil, func() {}, nil
	}
	creds := req.S3
	if !creds.Complete() {
		logger.Warn().Str("channel", target.URL).Msg("S3 credentials not set; publishing to the channel will likely fail")
		return nil, func() {}, nil
	}
	logger.Info().Str("channel", target.URL).Msg("authenticating")
	env, cleanup, err := s.Credentials.Prepare(target, creds)
	if err != nil {
		return nil, func() {}, err
	}
	logger.Debug().Strs("env", logging.SafeEnv(env)).Msg("credentials prepared")
	return env, cleanup, nil
}

func (s Service) loadVariants(path string) (types.VariantAxes, error) {
	if strings.TrimSpace(path) == "" {
		return types.VariantAxes{}, nil
	}
	return s.VariantSource.LoadVariants(path)
}

func registerSecrets(req ChannelRequest) {
	logging.RegisterSecret(req.S3.SecretAccessKey)
	logging.RegisterSecret(req.S3.AccessKeyID)
	logging.RegisterSecret(req.PrefixAPIKey)
}

func channelOptions(req ChannelRequest, env []string) ChannelOptions {
	return ChannelOptions{
		RattlerBuild:     req.RattlerBuild,
		Region:           req.S3.Region,
		Env:              env,
		PrefixAPIKey:     req.PrefixAPIKey,
		HTTPTimeoutSec:   req.HTTPTimeoutSec,
		HTTPRetries:      req.HTTPRetries,
		HTTPRetryDelayMs: req.HTTPRetryDelayMs,
	}
}

func sccacheDir(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return filepath.Join(xdg.CacheHome, "sccache")
}

func logSummary(logger zerolog.Logger, summary types.RunSummary, err error) {
	built := 0
	for _, result := range summary.Results {
		if result.OK {
			built++
		}
	}
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("built", built).
		Strs("failed", summary.Failures).
		Int("published", summary.Published()).
		Msg("run summary")
}
