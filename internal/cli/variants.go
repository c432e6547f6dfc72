package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
)

type variantsOptions struct {
	Variants string
}

func newVariantsCommand() *cobra.Command {
	opts := variantsOptions{}
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "Print the expanded variant matrix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVariants(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Variants, "variants", "variants.yaml", "Variant matrix file")
	_ = viper.BindPFlag("variants", cmd.Flags().Lookup("variants"))
	return cmd
}

func runVariants(ctx context.Context, cmd *cobra.Command, opts variantsOptions) error {
	service := newAppService()
	result, err := service.Variants(ctx, app.VariantsRequest{
		VariantsPath: resolveString(cmd, opts.Variants, "variants", "variants"),
	})
	if err != nil {
		return err
	}
	for i, config := range result.Configs {
		parts := make([]string, 0, len(result.Keys))
		for _, key := range result.Keys {
			parts = append(parts, key+"="+config[key])
		}
		fmt.Printf("%3d  %s\n", i+1, strings.Join(parts, " "))
	}
	fmt.Printf("combinations: %d\n", len(result.Configs))
	return nil
}
