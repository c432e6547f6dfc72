package core

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/types"
)

// ParseChannelTarget classifies a channel URL. s3:// URLs are bucket
// channels, http(s) URLs are upload-API channels whose first path segment
// names the channel, and file:// URLs or bare paths are local directories.
func ParseChannelTarget(raw string) (types.ChannelTarget, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.ChannelTarget{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("channel url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return types.ChannelTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid channel path").
				WithCause(err)
		}
		return types.ChannelTarget{URL: "file://" + abs, Kind: types.ChannelKindFile, Name: abs}, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return types.ChannelTarget{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid channel url").
			WithCause(err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "s3":
		name := strings.Trim(parsed.Host+parsed.Path, "/")
		if parsed.Host == "" {
			return types.ChannelTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("s3 channel url has no bucket")
		}
		return types.ChannelTarget{URL: "s3://" + name, Kind: types.ChannelKindS3, Name: name}, nil
	case "file":
		if parsed.Path == "" {
			return types.ChannelTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("file channel url has no path")
		}
		return types.ChannelTarget{URL: trimmed, Kind: types.ChannelKindFile, Name: filepath.Clean(parsed.Path)}, nil
	case "http", "https":
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if parsed.Host == "" || segments[0] == "" {
			return types.ChannelTarget{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("http channel url must name a channel")
		}
		base := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		return types.ChannelTarget{
			URL:     base + "/" + segments[0],
			Kind:    types.ChannelKindPrefix,
			Name:    segments[0],
			BaseURL: base,
		}, nil
	default:
		return types.ChannelTarget{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported channel scheme: %s", parsed.Scheme))
	}
}
