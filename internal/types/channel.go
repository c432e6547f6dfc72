package types

// ChannelTarget is where dependencies resolve from and artifacts are pushed
// to. It is read-only once the process has parsed its configuration.
type ChannelTarget struct {
	URL  string
	Kind ChannelKind
	// Name is the bucket path for s3 channels, the channel name for
	// prefix channels and the directory for file channels.
	Name string
	// BaseURL is the scheme and host for prefix channels.
	BaseURL string
}

type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Complete reports whether both halves of the key pair are set.
func (c S3Credentials) Complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}
