package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type buildOptions struct {
	channelOptions
	Manifest      string
	Variants      string
	OutputDir     string
	ExtraChannels []string
	BuildJobs     int
	Sccache       bool
	SccacheDir    string
	CudaOverride  string
	Parallel      int
	NoPublish     bool
}

func newBuildCommand() *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build [packages...]",
		Short: "Build the manifest level by level, publishing each level before the next",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "packages.yaml", "Package manifest with the build levels")
	cmd.Flags().StringVar(&opts.Variants, "variants", "variants.yaml", "Variant matrix file")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "output", "Output directory")
	cmd.Flags().StringSliceVar(&opts.ExtraChannels, "extra-channel", nil, "Additional channels to resolve from")
	cmd.Flags().IntVar(&opts.BuildJobs, "build-jobs", 0, "Parallel compile jobs per build (0 = tool default)")
	cmd.Flags().BoolVar(&opts.Sccache, "sccache", true, "Enable sccache as compiler launcher")
	cmd.Flags().StringVar(&opts.SccacheDir, "sccache-dir", "", "sccache directory (default under the XDG cache home)")
	cmd.Flags().StringVar(&opts.CudaOverride, "cuda-override", "12.9", "CONDA_OVERRIDE_CUDA for builds")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "Packages built concurrently within a level")
	cmd.Flags().BoolVar(&opts.NoPublish, "no-publish", false, "Build only, skip publishing")
	addChannelFlags(cmd, &opts.channelOptions)

	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("variants", cmd.Flags().Lookup("variants"))
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("extra_channels", cmd.Flags().Lookup("extra-channel"))
	_ = viper.BindPFlag("build_jobs", cmd.Flags().Lookup("build-jobs"))
	_ = viper.BindPFlag("sccache_enabled", cmd.Flags().Lookup("sccache"))
	_ = viper.BindPFlag("sccache_dir", cmd.Flags().Lookup("sccache-dir"))
	_ = viper.BindPFlag("cuda_override", cmd.Flags().Lookup("cuda-override"))
	_ = viper.BindPFlag("parallel", cmd.Flags().Lookup("parallel"))
	_ = viper.BindPFlag("no_publish", cmd.Flags().Lookup("no-publish"))

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, opts buildOptions, packages []string) error {
	service := newAppService()
	summary, err := service.Build(ctx, app.BuildRequest{
		ChannelRequest: resolveChannel(cmd, opts.channelOptions),
		ManifestPath:   resolveString(cmd, opts.Manifest, "manifest", "manifest"),
		VariantsPath:   resolveString(cmd, opts.Variants, "variants", "variants"),
		OutputDir:      resolveString(cmd, opts.OutputDir, "output", "output"),
		Packages:       packages,
		ExtraChannels:  resolveStrings(cmd, opts.ExtraChannels, "extra_channels", "extra-channel"),
		BuildJobs:      resolveInt(cmd, opts.BuildJobs, "build_jobs", "build-jobs"),
		Sccache:        resolveBool(cmd, opts.Sccache, "sccache_enabled", "sccache"),
		SccacheDir:     resolveString(cmd, opts.SccacheDir, "sccache_dir", "sccache-dir"),
		CudaOverride:   resolveString(cmd, opts.CudaOverride, "cuda_override", "cuda-override"),
		Parallel:       resolveInt(cmd, opts.Parallel, "parallel", "parallel"),
		NoPublish:      resolveBool(cmd, opts.NoPublish, "no_publish", "no-publish"),
	})
	if summary.RunID != "" {
		printRunSummary(os.Stdout, summary)
	}
	return err
}
