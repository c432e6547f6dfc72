package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type cleanOptions struct {
	OutputDir string
	DryRun    bool
}

func newCleanCommand() *cobra.Command {
	opts := cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove built packages from the output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.OutputDir, "output", "output", "Output directory")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only report what would be removed")
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, opts cleanOptions) error {
	service := newAppService()
	result, err := service.Clean(ctx, app.CleanRequest{
		OutputDir: resolveString(cmd, opts.OutputDir, "output", "output"),
		DryRun:    opts.DryRun,
	})
	if err != nil {
		return err
	}
	verb := "removed"
	if result.DryRun {
		verb = "would remove"
	}
	for _, path := range result.Removed {
		fmt.Printf("%s %s\n", verb, path)
	}
	if len(result.Removed) == 0 {
		fmt.Println("nothing to clean")
	}
	return nil
}
