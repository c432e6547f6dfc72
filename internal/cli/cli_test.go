package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{
		"build", "publish", "list", "variants",
		"clean", "init-channel", "local",
	}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "log-level", "log-file"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}
}

func TestBuildCommandFlags(t *testing.T) {
	cmd := newBuildCommand()
	flags := []string{
		"manifest", "variants", "output", "extra-channel",
		"build-jobs", "sccache", "sccache-dir", "cuda-override",
		"parallel", "no-publish", "channel-url",
		"s3-access-key-id", "s3-secret-access-key", "s3-region",
		"prefix-api-key", "rattler-build",
		"http-timeout", "http-retries", "http-retry-delay-ms",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestBuildCommandDefaults(t *testing.T) {
	cmd := newBuildCommand()
	assert.Equal(t, "us-east-2", cmd.Flags().Lookup("s3-region").DefValue)
	assert.Equal(t, "true", cmd.Flags().Lookup("sccache").DefValue)
	assert.Equal(t, "12.9", cmd.Flags().Lookup("cuda-override").DefValue)
	assert.Equal(t, defaultChannelURL, cmd.Flags().Lookup("channel-url").DefValue)
}

func TestLocalCommandFlags(t *testing.T) {
	cmd := newLocalCommand()
	flags := []string{
		"repo-root", "output", "all", "noarch-only", "variant-only",
		"clean", "dry-run", "no-sccache", "jobs", "docker-image", "no-upload",
	}
	for _, name := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestPublishCommandFlags(t *testing.T) {
	cmd := newPublishCommand()
	for _, name := range []string{"output", "dry-run", "channel-url", "prefix-api-key"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveStrings(t *testing.T) {
	got := resolveStrings(nil, []string{"a", "b"}, "test_key", "test-flag")
	assert.Equal(t, []string{"a", "b"}, got)

	got = resolveStrings(nil, nil, "test_key", "test-flag")
	assert.Empty(t, got)
}

func TestResolveBoolAndInt(t *testing.T) {
	assert.True(t, resolveBool(nil, true, "test_key", "test-flag"))
	assert.False(t, resolveBool(nil, false, "test_key", "test-flag"))
	assert.Equal(t, 42, resolveInt(nil, 42, "test_key", "test-flag"))
}

func TestResolveStringPrefersChangedFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "from-flag"))
	assert.Equal(t, "from-flag", resolveString(cmd, "from-flag", "wv_forge_test_key", "myflag"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")

	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestShellCommandBreaksBeforeFlags(t *testing.T) {
	got := shellCommand([]string{"docker", "run", "--rm", "-e", "BUILD_PACKAGES=noarch:a:/x;variant:b:/y", "image"})
	assert.Equal(t, "docker run \\\n    --rm \\\n    -e 'BUILD_PACKAGES=noarch:a:/x;variant:b:/y' image", got)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "plain", shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestForwardedEnvOnlyIncludesSetVariables(t *testing.T) {
	t.Setenv("CONDA_OVERRIDE_CUDA", "12.9")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	require.NoError(t, os.Unsetenv("S3_ACCESS_KEY_ID"))

	got := forwardedEnv()
	assert.Equal(t, "12.9", got["CONDA_OVERRIDE_CUDA"])
	assert.Contains(t, got, "S3_REGION")
	assert.NotContains(t, got, "S3_ACCESS_KEY_ID")
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name: "build failures",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("1 package(s) failed: libfoo"),
			expected: 4,
		},
		{
			name: "not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("file missing"),
			expected: 5,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("boom"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// ---------- Command execution tests ----------

func TestVariantsCommandRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("python:\n  - \"3.11\"\n  - \"3.12\"\ncuda_compiler_version:\n  - \"12.9\"\n"), 0o644))

	root := newRootCommand()
	root.SetArgs([]string{"variants", "--variants", path, "--log-level", "error"})
	require.NoError(t, root.Execute())
}

func TestVariantsCommandRejectsBadZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("python:\n  - \"3.11\"\n  - \"3.12\"\ncuda:\n  - \"12.9\"\nzip_keys:\n  - [python, cuda]\n"), 0o644))

	root := newRootCommand()
	root.SetArgs([]string{"variants", "--variants", path, "--log-level", "error"})
	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeForError(err))
}

func TestCleanCommandDryRunKeepsOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "noarch"), 0o755))

	root := newRootCommand()
	root.SetArgs([]string{"clean", "--output", dir, "--dry-run", "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.DirExists(t, filepath.Join(dir, "noarch"))
}
