package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wv-forge/internal/types"
)

func testBuildConfig() BuildConfig {
	return BuildConfig{
		OutputDir: "/out",
		Channel:   types.ChannelTarget{URL: "s3://wv-forge/wv-forge", Kind: types.ChannelKindS3},
		Variants: types.VariantAxes{
			Axes:  map[string][]string{"python": {"3.11"}, "cuda_version": {"12.8"}},
			Extra: map[string]any{"c_stdlib_version": "2.28"},
		},
	}
}

func TestSelectBuildFlagsNoarch(t *testing.T) {
	flags, err := SelectBuildFlags(types.PackageSpec{Name: "a", Kind: types.BuildKindNoarch, RecipePath: "pkgs/a/recipe"}, testBuildConfig())
	require.NoError(t, err)
	want := []string{
		"build", "--recipe", "pkgs/a/recipe", "--output-dir", "/out", "--skip-existing", "all",
		"--ignore-recipe-variants", "-c", "s3://wv-forge/wv-forge", "-c", "conda-forge",
	}
	if diff := cmp.Diff(want, flags.Args); diff != "" {
		t.Fatalf("unexpected args (-want +got):\n%s", diff)
	}
	assert.Nil(t, flags.VariantOverride)
}

func TestSelectBuildFlagsStandard(t *testing.T) {
	flags, err := SelectBuildFlags(types.PackageSpec{Name: "s", Kind: types.BuildKindStandard, RecipePath: "r"}, testBuildConfig())
	require.NoError(t, err)
	assert.NotContains(t, flags.Args, "--ignore-recipe-variants")
	assert.NotContains(t, flags.Args, "--variant-config")
	assert.Contains(t, flags.Args, "-c")
	assert.Nil(t, flags.VariantOverride)
}

func TestSelectBuildFlagsVariantCarriesChannelsInConfig(t *testing.T) {
	cfg := testBuildConfig()
	cfg.Variants.ZipKeys = [][]string{{"python", "cuda_version"}}
	flags, err := SelectBuildFlags(types.PackageSpec{Name: "v", Kind: types.BuildKindVariant, RecipePath: "r"}, cfg)
	require.NoError(t, err)
	assert.NotContains(t, flags.Args, "-c")
	assert.NotContains(t, flags.Args, "--ignore-recipe-variants")
	require.NotNil(t, flags.VariantOverride)
	assert.Equal(t, []string{"s3://wv-forge/wv-forge,conda-forge"}, flags.VariantOverride["channel_sources"])
	assert.Equal(t, []string{"3.11"}, flags.VariantOverride["python"])
	assert.Equal(t, "2.28", flags.VariantOverride["c_stdlib_version"])
	assert.Equal(t, [][]string{{"python", "cuda_version"}}, flags.VariantOverride["zip_keys"])
}

func TestSelectBuildFlagsEnv(t *testing.T) {
	cfg := testBuildConfig()
	cfg.Jobs = 8
	cfg.Sccache = true
	cfg.SccacheDir = "/cache/sccache"
	cfg.CudaOverride = "12.9"
	cfg.AuthEnv = []string{"RATTLER_AUTH_FILE=/tmp/auth.json"}
	flags, err := SelectBuildFlags(types.PackageSpec{Name: "a", Kind: types.BuildKindStandard, RecipePath: "r"}, cfg)
	require.NoError(t, err)
	for _, entry := range []string{
		"CPU_COUNT=8", "MAX_JOBS=8", "SCCACHE_ENABLED=1", "SCCACHE_DIR=/cache/sccache",
		"CMAKE_CXX_COMPILER_LAUNCHER=sccache", "CONDA_OVERRIDE_CUDA=12.9", "RATTLER_AUTH_FILE=/tmp/auth.json",
	} {
		assert.Contains(t, flags.Env, entry)
	}

	cfg.Sccache = false
	cfg.Jobs = 0
	flags, err = SelectBuildFlags(types.PackageSpec{Name: "a", Kind: types.BuildKindStandard, RecipePath: "r"}, cfg)
	require.NoError(t, err)
	assert.Contains(t, flags.Env, "SCCACHE_ENABLED=0")
	assert.NotContains(t, flags.Env, "CPU_COUNT=8")
}

func TestSelectBuildFlagsErrors(t *testing.T) {
	_, err := SelectBuildFlags(types.PackageSpec{Name: "x", Kind: "weird", RecipePath: "r"}, testBuildConfig())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = SelectBuildFlags(types.PackageSpec{Name: "x", Kind: types.BuildKindNoarch}, testBuildConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipe path")
}
