package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

func buildManifest() types.Manifest {
	return types.Manifest{Levels: []types.Level{
		{Name: "base", Packages: []types.PackageSpec{
			{Name: "pyutil", Kind: types.BuildKindNoarch, RecipePath: "/r/pyutil"},
			{Name: "libfoo", Kind: types.BuildKindStandard, RecipePath: "/r/libfoo"},
		}},
	}}
}

func buildRequest(t *testing.T) BuildRequest {
	return BuildRequest{
		ChannelRequest: ChannelRequest{
			ChannelURL:   "s3://wv-forge/wv-forge",
			S3:           types.S3Credentials{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "examplesecret", Region: "us-east-2"},
			RattlerBuild: "rattler-build",
		},
		ManifestPath: "packages.yaml",
		OutputDir:    filepath.Join(t.TempDir(), "output"),
		Sccache:      true,
		SccacheDir:   "/cache/sccache",
		BuildJobs:    4,
	}
}

func TestBuildPublishesAndCleansUpCredentials(t *testing.T) {
	artifacts := []types.Artifact{{FileName: "pyutil-0.4.0-pyh0_0.conda", Subdir: "noarch", Name: "pyutil"}}
	ts := newTestService(buildManifest(), artifacts)
	cleaned := false
	ts.credentials.cleaned = &cleaned

	summary, err := ts.Build(context.Background(), buildRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 1, summary.Published())
	assert.Equal(t, []string{"pyutil-0.4.0-pyh0_0.conda"}, ts.channel.published)
	assert.Equal(t, types.ChannelKindS3, ts.channelKind)
	assert.Equal(t, 1, ts.credentials.calls)
	assert.True(t, cleaned)

	flags := ts.builder.flags["libfoo"]
	assert.Contains(t, flags.Env, "RATTLER_AUTH_FILE=/tmp/auth.json")
	assert.Contains(t, flags.Env, "SCCACHE_DIR=/cache/sccache")
	assert.Contains(t, flags.Env, "CPU_COUNT=4")
	assert.Contains(t, flags.Args, "s3://wv-forge/wv-forge")
}

func TestBuildWithoutCredentialsStillRuns(t *testing.T) {
	ts := newTestService(buildManifest(), nil)
	req := buildRequest(t)
	req.S3 = types.S3Credentials{}

	_, err := ts.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, ts.credentials.calls)
	assert.Len(t, ts.builder.flags, 2)
	assert.NotContains(t, ts.builder.flags["pyutil"].Env, "RATTLER_AUTH_FILE=/tmp/auth.json")
}

func TestBuildWarnsUpFrontWithoutPrefixAPIKey(t *testing.T) {
	ts := newTestService(buildManifest(), nil)
	req := buildRequest(t)
	req.ChannelURL = "https://prefix.dev/wv-forge"
	req.S3 = types.S3Credentials{}
	var logs bytes.Buffer
	ctx := zerolog.New(&logs).WithContext(context.Background())

	_, err := ts.Build(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "prefix API key not set")
	assert.Less(t, strings.Index(logs.String(), "prefix API key not set"), strings.Index(logs.String(), "starting build"))
	assert.Equal(t, types.ChannelKindPrefix, ts.channelKind)
	assert.Equal(t, 0, ts.credentials.calls)
}

func TestBuildFailuresReturnFailedPrecondition(t *testing.T) {
	ts := newTestService(buildManifest(), nil)
	ts.builder.fail["pyutil"] = true

	summary, err := ts.Build(context.Background(), buildRequest(t))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Equal(t, []string{"pyutil"}, summary.Failures)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Contains(t, ts.builder.flags, "libfoo")
}

func TestBuildMissingToolStopsBeforeBuilding(t *testing.T) {
	ts := newTestService(buildManifest(), nil)
	ts.Builders = func(_ string) (ports.BuilderPort, ports.ToolPort) {
		return ts.builder, stubTool{err: errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg("rattler-build not found on PATH")}
	}

	_, err := ts.Build(context.Background(), buildRequest(t))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Empty(t, ts.builder.flags)
	assert.Equal(t, 0, ts.credentials.calls)
}

func TestBuildNoPublishSkipsChannel(t *testing.T) {
	ts := newTestService(buildManifest(), []types.Artifact{{FileName: "a-1.0-0.conda"}})
	req := buildRequest(t)
	req.NoPublish = true

	summary, err := ts.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, ts.channelKind)
	assert.Equal(t, 0, summary.Published())
}

func TestBuildFiltersRequestedPackages(t *testing.T) {
	ts := newTestService(buildManifest(), nil)
	req := buildRequest(t)
	req.Packages = []string{"libfoo", "missing"}

	_, err := ts.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, ts.builder.flags, 1)
	assert.Contains(t, ts.builder.flags, "libfoo")
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BuildRequest)
		wantMsg string
	}{
		{name: "output dir", mutate: func(r *BuildRequest) { r.OutputDir = " " }, wantMsg: "output directory is required"},
		{name: "manifest", mutate: func(r *BuildRequest) { r.ManifestPath = "" }, wantMsg: "package manifest is required"},
		{name: "channel", mutate: func(r *BuildRequest) { r.ChannelURL = "ftp://example.com/x" }, wantMsg: "unsupported channel scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestService(buildManifest(), nil)
			req := buildRequest(t)
			tt.mutate(&req)
			_, err := ts.Build(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}
}
