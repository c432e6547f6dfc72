package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/adapters"
	"wv-forge/internal/app"
	"wv-forge/internal/logging"
	"wv-forge/internal/types"
)

type localOptions struct {
	channelOptions
	RepoRoot    string
	OutputDir   string
	Variants    string
	All         bool
	NoarchOnly  bool
	VariantOnly bool
	Clean       bool
	DryRun      bool
	NoSccache   bool
	Jobs        int
	Image       string
	NoUpload    bool
}

func newLocalCommand() *cobra.Command {
	opts := localOptions{}
	cmd := &cobra.Command{
		Use:   "local [packages...]",
		Short: "Build selected recipes inside the conda-forge build container",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.RepoRoot, "repo-root", ".", "Repository root containing pkgs/")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Output directory (default <repo-root>/output)")
	cmd.Flags().StringVar(&opts.Variants, "variants", "variants.yaml", "Variant matrix file")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Build all packages")
	cmd.Flags().BoolVar(&opts.NoarchOnly, "noarch-only", false, "Build only noarch packages")
	cmd.Flags().BoolVar(&opts.VariantOnly, "variant-only", false, "Build only variant packages")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Remove build outputs before building")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the container command without running it")
	cmd.Flags().BoolVar(&opts.NoSccache, "no-sccache", false, "Disable the sccache mount")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "Parallel compile jobs inside the container (0 = all cores)")
	cmd.Flags().StringVar(&opts.Image, "docker-image", adapters.DefaultBuildImage, "Build container image")
	cmd.Flags().BoolVar(&opts.NoUpload, "no-upload", false, "Skip publishing after the build")
	addChannelFlags(cmd, &opts.channelOptions)

	_ = viper.BindPFlag("repo_root", cmd.Flags().Lookup("repo-root"))
	_ = viper.BindPFlag("variants", cmd.Flags().Lookup("variants"))
	_ = viper.BindPFlag("docker_image", cmd.Flags().Lookup("docker-image"))
	_ = viper.BindPFlag("local_jobs", cmd.Flags().Lookup("jobs"))

	return cmd
}

func runLocal(ctx context.Context, cmd *cobra.Command, opts localOptions, packages []string) error {
	interactive := logging.IsTerminal(os.Stdin)
	var selector app.Selector
	if interactive {
		selector = selectPackages
	}
	service := newAppService()
	result, err := service.Local(ctx, app.LocalRequest{
		RepoRoot:     resolveString(cmd, opts.RepoRoot, "repo_root", "repo-root"),
		OutputDir:    opts.OutputDir,
		VariantsPath: resolveString(cmd, opts.Variants, "variants", "variants"),
		Packages:     packages,
		All:          opts.All,
		NoarchOnly:   opts.NoarchOnly,
		VariantOnly:  opts.VariantOnly,
		Clean:        opts.Clean,
		DryRun:       opts.DryRun,
		NoSccache:    opts.NoSccache,
		Jobs:         resolveInt(cmd, opts.Jobs, "local_jobs", "jobs"),
		Image:        resolveString(cmd, opts.Image, "docker_image", "docker-image"),
		Interactive:  interactive,
		Forward:      forwardedEnv(),
		Select:       selector,
		NoUpload:     opts.NoUpload,
		Publish:      resolveChannel(cmd, opts.channelOptions),
	})
	if err != nil {
		return err
	}
	styles := newOutputStyles()
	for _, spec := range result.Skipped {
		fmt.Println(styles.Dim.Render("already built: " + spec.Name))
	}
	if result.DryRun && len(result.Command) > 0 {
		fmt.Println(shellCommand(result.Command))
		return nil
	}
	if result.Publish != nil {
		fmt.Printf("published: %d, already present: %d\n", result.Publish.Published, result.Publish.Present)
	}
	return nil
}

func forwardedEnv() map[string]string {
	values := map[string]string{}
	for _, key := range adapters.ForwardedEnv {
		if value, ok := os.LookupEnv(key); ok {
			values[key] = value
		}
	}
	return values
}

func selectPackages(candidates []app.LocalCandidate) ([]types.PackageSpec, error) {
	options := make([]huh.Option[int], len(candidates))
	for i, candidate := range candidates {
		label := fmt.Sprintf("%s (%s)", candidate.Spec.Name, candidate.Spec.Kind)
		if candidate.Built {
			label += " [built]"
		}
		options[i] = huh.NewOption(label, i)
	}
	var chosen []int
	field := huh.NewMultiSelect[int]().
		Title("Select packages to build").
		Options(options...).
		Value(&chosen)
	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("package selection failed").
			WithCause(err)
	}
	selected := make([]types.PackageSpec, 0, len(chosen))
	for _, i := range chosen {
		selected = append(selected, candidates[i].Spec)
	}
	return selected, nil
}
