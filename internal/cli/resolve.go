package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wv-forge/internal/app"
	"wv-forge/internal/types"
)

const defaultChannelURL = "s3://wv-forge/wv-forge"

// channelOptions are the flags shared by every command that talks to a
// channel.
type channelOptions struct {
	ChannelURL       string
	S3AccessKeyID    string
	S3SecretKey      string
	S3Region         string
	PrefixAPIKey     string
	RattlerBuild     string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

func addChannelFlags(cmd *cobra.Command, opts *channelOptions) {
	cmd.Flags().StringVar(&opts.ChannelURL, "channel-url", defaultChannelURL, "Channel to resolve from and publish to (s3://, https://prefix.dev/<name>, file://)")
	cmd.Flags().StringVar(&opts.S3AccessKeyID, "s3-access-key-id", "", "S3 access key id")
	cmd.Flags().StringVar(&opts.S3SecretKey, "s3-secret-access-key", "", "S3 secret access key")
	cmd.Flags().StringVar(&opts.S3Region, "s3-region", "us-east-2", "S3 region")
	cmd.Flags().StringVar(&opts.PrefixAPIKey, "prefix-api-key", "", "API key for prefix.dev channels")
	cmd.Flags().StringVar(&opts.RattlerBuild, "rattler-build", "rattler-build", "rattler-build binary")
	cmd.Flags().IntVar(&opts.HTTPTimeoutSec, "http-timeout", 300, "Upload HTTP timeout in seconds (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetries, "http-retries", 3, "Upload retries (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "Upload retry base delay in ms (0 = default)")

	_ = viper.BindPFlag("channel_url", cmd.Flags().Lookup("channel-url"))
	_ = viper.BindPFlag("s3_access_key_id", cmd.Flags().Lookup("s3-access-key-id"))
	_ = viper.BindPFlag("s3_secret_access_key", cmd.Flags().Lookup("s3-secret-access-key"))
	_ = viper.BindPFlag("s3_region", cmd.Flags().Lookup("s3-region"))
	_ = viper.BindPFlag("prefix_api_key", cmd.Flags().Lookup("prefix-api-key"))
	_ = viper.BindPFlag("rattler_build", cmd.Flags().Lookup("rattler-build"))
	_ = viper.BindPFlag("http_timeout_sec", cmd.Flags().Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", cmd.Flags().Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", cmd.Flags().Lookup("http-retry-delay-ms"))
}

func resolveChannel(cmd *cobra.Command, opts channelOptions) app.ChannelRequest {
	return app.ChannelRequest{
		ChannelURL: resolveString(cmd, opts.ChannelURL, "channel_url", "channel-url"),
		S3: types.S3Credentials{
			AccessKeyID:     resolveString(cmd, opts.S3AccessKeyID, "s3_access_key_id", "s3-access-key-id"),
			SecretAccessKey: resolveString(cmd, opts.S3SecretKey, "s3_secret_access_key", "s3-secret-access-key"),
			Region:          resolveString(cmd, opts.S3Region, "s3_region", "s3-region"),
		},
		PrefixAPIKey:     resolveString(cmd, opts.PrefixAPIKey, "prefix_api_key", "prefix-api-key"),
		RattlerBuild:     resolveString(cmd, opts.RattlerBuild, "rattler_build", "rattler-build"),
		HTTPTimeoutSec:   resolveInt(cmd, opts.HTTPTimeoutSec, "http_timeout_sec", "http-timeout"),
		HTTPRetries:      resolveInt(cmd, opts.HTTPRetries, "http_retries", "http-retries"),
		HTTPRetryDelayMs: resolveInt(cmd, opts.HTTPRetryDelayMs, "http_retry_delay_ms", "http-retry-delay-ms"),
	}
}

func newAppService() app.Service {
	return app.NewService()
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
