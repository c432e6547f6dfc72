package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type listOptions struct {
	Manifest  string
	Variants  string
	OutputDir string
	RepoRoot  string
}

func newListCommand() *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manifest packages by level with their build status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "packages.yaml", "Package manifest with the build levels")
	cmd.Flags().StringVar(&opts.Variants, "variants", "variants.yaml", "Variant matrix file")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "output", "Output directory")
	cmd.Flags().StringVar(&opts.RepoRoot, "repo-root", ".", "Repository root scanned for pkgs/*/recipe")

	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("variants", cmd.Flags().Lookup("variants"))
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("repo_root", cmd.Flags().Lookup("repo-root"))

	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, opts listOptions) error {
	service := newAppService()
	result, err := service.List(ctx, app.ListRequest{
		ManifestPath: resolveString(cmd, opts.Manifest, "manifest", "manifest"),
		VariantsPath: resolveString(cmd, opts.Variants, "variants", "variants"),
		OutputDir:    resolveString(cmd, opts.OutputDir, "output", "output"),
		RepoRoot:     resolveString(cmd, opts.RepoRoot, "repo_root", "repo-root"),
	})
	if err != nil {
		return err
	}
	styles := newOutputStyles()
	level := ""
	for _, entry := range result.Entries {
		if entry.Level != level {
			level = entry.Level
			fmt.Println(styles.Header.Render(level))
		}
		status := styles.Dim.Render("not built")
		if entry.Built {
			status = styles.Success.Render("built")
		}
		latest := entry.Latest
		if latest == "" {
			latest = "-"
		}
		fmt.Printf("  %-36s %-9s %-10s %s\n", entry.Spec.Name, entry.Spec.Kind, latest, status)
	}
	fmt.Printf("variant combinations: %d\n", result.VariantCount)
	for _, name := range result.Unlisted {
		fmt.Println(styles.Warning.Render("not in manifest: " + name))
	}
	return nil
}
