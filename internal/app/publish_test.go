package app

import (
	"context"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wv-forge/internal/types"
)

func publishArtifacts() []types.Artifact {
	return []types.Artifact{
		{FileName: "pyutil-0.4.0-pyh0_0.conda", Subdir: "noarch", Name: "pyutil"},
		{FileName: "libfoo-1.0-h0_0.conda", Subdir: "linux-64", Name: "libfoo"},
		{FileName: "spconv-2.3.8-cuda129_0.conda", Subdir: "linux-64", Name: "spconv"},
	}
}

func TestPublish_EmptyOutputDir(t *testing.T) {
	svc := Service{}
	_, err := svc.Publish(context.Background(), PublishRequest{OutputDir: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory is required")
}

func TestPublish_CountsPresentArtifacts(t *testing.T) {
	ts := newTestService(types.Manifest{}, publishArtifacts())
	ts.channel.present["libfoo-1.0-h0_0.conda"] = true

	result, err := ts.Publish(context.Background(), PublishRequest{
		ChannelRequest: ChannelRequest{ChannelURL: "https://prefix.dev/wv-forge", PrefixAPIKey: "pfx-token"},
		OutputDir:      "output",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	assert.Equal(t, 1, result.Present)
	assert.Equal(t, types.ChannelKindPrefix, ts.channelKind)
	assert.Equal(t, 0, ts.credentials.calls)
}

func TestPublish_DryRunPublishesNothing(t *testing.T) {
	ts := newTestService(types.Manifest{}, publishArtifacts())

	result, err := ts.Publish(context.Background(), PublishRequest{
		ChannelRequest: ChannelRequest{ChannelURL: "s3://wv-forge/wv-forge"},
		OutputDir:      "output",
		Packages:       []string{"spconv"},
		DryRun:         true,
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "spconv", result.Artifacts[0].Name)
	assert.Empty(t, ts.channel.published)
	assert.Empty(t, ts.channelKind)
}

func TestPublish_ErrorIsFatal(t *testing.T) {
	ts := newTestService(types.Manifest{}, publishArtifacts())
	ts.channel.failOn = "libfoo-1.0-h0_0.conda"

	result, err := ts.Publish(context.Background(), PublishRequest{
		ChannelRequest: ChannelRequest{ChannelURL: "/srv/channel"},
		OutputDir:      "output",
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "publish failed for libfoo-1.0-h0_0.conda")
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, types.ChannelKindFile, ts.channelKind)
}

func TestPublish_NothingToPublish(t *testing.T) {
	ts := newTestService(types.Manifest{}, nil)
	result, err := ts.Publish(context.Background(), PublishRequest{
		ChannelRequest: ChannelRequest{ChannelURL: "s3://wv-forge/wv-forge"},
		OutputDir:      "output",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Artifacts)
	assert.Empty(t, ts.channelKind)
}
