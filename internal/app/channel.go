package app

import (
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/adapters"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// ChannelOptions carries the settings a channel backend may need.
type ChannelOptions struct {
	RattlerBuild     string
	Region           string
	Env              []string
	PrefixAPIKey     string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

// NewChannel selects the backend for a channel: the build tool's publish
// subcommand for s3, the upload API for prefix channels and a directory
// copy for file channels.
func NewChannel(target types.ChannelTarget, opts ChannelOptions) (ports.ChannelPort, error) {
	switch target.Kind {
	case types.ChannelKindS3:
		return adapters.NewRattlerPublishAdapter(opts.RattlerBuild, target, opts.Region, opts.Env), nil
	case types.ChannelKindPrefix:
		return adapters.NewPrefixChannelAdapter(target.BaseURL, target.Name, opts.PrefixAPIKey, opts.HTTPTimeoutSec, opts.HTTPRetries, opts.HTTPRetryDelayMs), nil
	case types.ChannelKindFile:
		return adapters.NewFileChannelAdapter(filepath.Clean(target.Name)), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported channel kind: " + string(target.Kind))
	}
}
