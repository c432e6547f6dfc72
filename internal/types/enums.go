package types

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

type BuildKind string

const (
	BuildKindNoarch   BuildKind = "noarch"
	BuildKindVariant  BuildKind = "variant"
	BuildKindStandard BuildKind = "standard"
)

// ParseBuildKind accepts the three classifications the build driver knows
// how to invoke. Anything else is a configuration error.
func ParseBuildKind(value string) (BuildKind, error) {
	kind := BuildKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown build kind: %q", value))
	}
	return kind, nil
}

func (k BuildKind) Valid() bool {
	switch k {
	case BuildKindNoarch, BuildKindVariant, BuildKindStandard:
		return true
	default:
		return false
	}
}

type ChannelKind string

const (
	ChannelKindS3     ChannelKind = "s3"
	ChannelKindPrefix ChannelKind = "prefix"
	ChannelKindFile   ChannelKind = "file"
)

type PublishOutcome string

const (
	PublishOutcomePublished      PublishOutcome = "published"
	PublishOutcomeAlreadyPresent PublishOutcome = "already-present"
)
