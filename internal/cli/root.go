package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "WV_FORGE"

// unprefixedEnv maps config keys to the bare variable names CI jobs export.
var unprefixedEnv = map[string]string{
	"channel_url":          "CHANNEL_URL",
	"build_jobs":           "BUILD_JOBS",
	"sccache_enabled":      "SCCACHE_ENABLED",
	"s3_access_key_id":     "S3_ACCESS_KEY_ID",
	"s3_secret_access_key": "S3_SECRET_ACCESS_KEY",
	"s3_region":            "S3_REGION",
	"cuda_override":        "CONDA_OVERRIDE_CUDA",
}

type RootConfig struct {
	ConfigFile string
	LogLevel   string
	LogFile    string
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorMessage(err))
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	closeLog := func() error { return nil }
	cmd := &cobra.Command{
		Use:           "wv-forge",
		Short:         "Leveled conda package build and publish driver",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			logger, closer, err := logging.Setup(logging.Options{
				Level: viper.GetString("log_level"),
				File:  viper.GetString("log_file"),
			})
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("failed to set up logging").
					WithCause(err)
			}
			closeLog = closer
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logger.WithContext(ctx))
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return closeLog()
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "", "Also write JSON logs to this rotating file")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_file", cmd.PersistentFlags().Lookup("log-file"))

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newPublishCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newVariantsCommand())
	cmd.AddCommand(newCleanCommand())
	cmd.AddCommand(newInitChannelCommand())
	cmd.AddCommand(newLocalCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	for key, name := range unprefixedEnv {
		_ = viper.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), name)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("wv-forge")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/wv-forge")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
