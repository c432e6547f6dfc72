package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type publishOptions struct {
	channelOptions
	OutputDir string
	DryRun    bool
}

func newPublishCommand() *cobra.Command {
	opts := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish [packages...]",
		Short: "Publish every artifact in the output directory to the channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.OutputDir, "output", "output", "Output directory")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "List artifacts without uploading")
	addChannelFlags(cmd, &opts.channelOptions)

	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))

	return cmd
}

func runPublish(ctx context.Context, cmd *cobra.Command, opts publishOptions, packages []string) error {
	service := newAppService()
	result, err := service.Publish(ctx, app.PublishRequest{
		ChannelRequest: resolveChannel(cmd, opts.channelOptions),
		OutputDir:      resolveString(cmd, opts.OutputDir, "output", "output"),
		Packages:       packages,
		DryRun:         opts.DryRun,
	})
	if err != nil {
		return err
	}
	if result.DryRun {
		for _, artifact := range result.Artifacts {
			fmt.Printf("would publish %s/%s\n", artifact.Subdir, artifact.FileName)
		}
		return nil
	}
	fmt.Printf("published: %d, already present: %d\n", result.Published, result.Present)
	return nil
}
