package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

const rattlerAuthFileEnv = "RATTLER_AUTH_FILE"

type S3CredentialsAdapter struct {
	// TempDir is where the auth file's directory is created. Empty means
	// os.TempDir.
	TempDir string
}

func NewS3CredentialsAdapter() S3CredentialsAdapter {
	return S3CredentialsAdapter{}
}

type rattlerS3Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

type rattlerAuthEntry struct {
	S3Credentials rattlerS3Credentials `json:"S3Credentials"`
}

// Prepare writes the auth file for an s3 channel. Non-s3 channels and
// incomplete key pairs return no environment and a no-op cleanup.
func (a S3CredentialsAdapter) Prepare(target types.ChannelTarget, creds types.S3Credentials) ([]string, func(), error) {
	noop := func() {}
	if target.Kind != types.ChannelKindS3 || !creds.Complete() {
		return nil, noop, nil
	}
	bucket := strings.SplitN(target.Name, "/", 2)[0]
	entries := map[string]rattlerAuthEntry{
		"s3://" + bucket: {S3Credentials: rattlerS3Credentials{
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
		}},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, noop, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode auth file").
			WithCause(err)
	}
	dir, err := os.MkdirTemp(a.TempDir, "wv-forge-auth-")
	if err != nil {
		return nil, noop, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create auth dir").
			WithCause(err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	path := filepath.Join(dir, "auth.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return nil, noop, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write auth file").
			WithCause(err)
	}
	env := []string{
		rattlerAuthFileEnv + "=" + path,
		"AWS_ACCESS_KEY_ID=" + creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + creds.SecretAccessKey,
	}
	if creds.Region != "" {
		env = append(env, "AWS_REGION="+creds.Region, "AWS_DEFAULT_REGION="+creds.Region)
	}
	return env, cleanup, nil
}

var _ ports.CredentialsPort = S3CredentialsAdapter{}
