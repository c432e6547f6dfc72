package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type initChannelOptions struct {
	channelOptions
	Subdirs []string
}

func newInitChannelCommand() *cobra.Command {
	opts := initChannelOptions{}
	cmd := &cobra.Command{
		Use:   "init-channel",
		Short: "Write empty repodata.json files so a new channel can be used as a source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitChannel(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Subdirs, "subdir", nil, "Platform subdirs to initialize (default: common platforms)")
	addChannelFlags(cmd, &opts.channelOptions)
	_ = viper.BindPFlag("subdirs", cmd.Flags().Lookup("subdir"))
	return cmd
}

func runInitChannel(ctx context.Context, cmd *cobra.Command, opts initChannelOptions) error {
	service := newAppService()
	result, err := service.InitChannel(ctx, app.InitChannelRequest{
		ChannelRequest: resolveChannel(cmd, opts.channelOptions),
		Subdirs:        resolveStrings(cmd, opts.Subdirs, "subdirs", "subdir"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("initialized %s: %s\n", result.Channel.URL, strings.Join(result.Subdirs, ", "))
	return nil
}
