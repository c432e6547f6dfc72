package ports

import "wv-forge/internal/types"

// CredentialsPort writes an ephemeral auth file for the channel and
// returns the environment that child processes need to use it. The
// returned cleanup removes the file.
type CredentialsPort interface {
	Prepare(target types.ChannelTarget, creds types.S3Credentials) (env []string, cleanup func(), err error)
}
