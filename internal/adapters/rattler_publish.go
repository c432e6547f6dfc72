package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"

	"wv-forge/internal/ports"
	"wv-forge/internal/shared"
	"wv-forge/internal/types"
)

const defaultAWSCLI = "aws"

const emptyRepodata = "{\"packages\": {}, \"packages.conda\": {}}\n"

// RattlerPublishAdapter pushes artifacts to an S3 channel with the build
// tool's publish subcommand. Env carries the credentials prepared for the
// run.
type RattlerPublishAdapter struct {
	Binary  string
	AWS     string
	Channel types.ChannelTarget
	Region  string
	Env     []string
}

func NewRattlerPublishAdapter(binary string, channel types.ChannelTarget, region string, env []string) RattlerPublishAdapter {
	if binary == "" {
		binary = defaultRattlerBuild
	}
	return RattlerPublishAdapter{
		Binary:  binary,
		AWS:     defaultAWSCLI,
		Channel: channel,
		Region:  region,
		Env:     env,
	}
}

func (a RattlerPublishAdapter) Publish(ctx context.Context, artifact types.Artifact) (types.PublishOutcome, error) {
	if strings.TrimSpace(a.Channel.URL) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("channel url is empty")
	}
	cmd := exec.CommandContext(ctx, a.binary(), "publish", artifact.Path, "--to", a.Channel.URL)
	cmd.Env = append(os.Environ(), a.Env...)
	output, err := cmd.CombinedOutput()
	if shared.ContainsFold(string(output), "already exists") {
		zerolog.Ctx(ctx).Debug().Str("file", artifact.FileName).Msg("artifact already in channel")
		return types.PublishOutcomeAlreadyPresent, nil
	}
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("publish of %s failed", artifact.FileName)).
			WithCause(shared.CommandError(output, err))
	}
	return types.PublishOutcomePublished, nil
}

// InitChannel uploads an empty repodata.json per subdir with the AWS CLI.
func (a RattlerPublishAdapter) InitChannel(ctx context.Context, subdirs []string) error {
	base := strings.TrimRight(a.Channel.URL, "/")
	if !strings.HasPrefix(base, "s3://") {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("channel is not an s3 url")
	}
	for _, subdir := range subdirs {
		key := fmt.Sprintf("%s/%s/repodata.json", base, subdir)
		args := []string{"s3", "cp", "-", key, "--content-type", "application/json"}
		if a.Region != "" {
			args = append(args, "--region", a.Region)
		}
		cmd := exec.CommandContext(ctx, a.awsCLI(), args...)
		cmd.Env = append(os.Environ(), a.Env...)
		cmd.Stdin = strings.NewReader(emptyRepodata)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to initialize %s", subdir)).
				WithCause(shared.CommandError(output, err))
		}
		zerolog.Ctx(ctx).Info().Str("key", key).Msg("initialized channel subdir")
	}
	return nil
}

func (a RattlerPublishAdapter) binary() string {
	if a.Binary == "" {
		return defaultRattlerBuild
	}
	return a.Binary
}

func (a RattlerPublishAdapter) awsCLI() string {
	if a.AWS == "" {
		return defaultAWSCLI
	}
	return a.AWS
}

var _ ports.ChannelPublisherPort = RattlerPublishAdapter{}
var _ ports.ChannelInitPort = RattlerPublishAdapter{}
