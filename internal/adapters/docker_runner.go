package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/adrg/xdg"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

const DefaultBuildImage = "quay.io/condaforge/linux-anvil-x86_64:alma9"
const containerRepo = "/home/conda/wv-forge"
const containerCache = "/home/conda/.cache"
const containerScript = containerRepo + "/.scripts/run_rattler_build.sh"

// ForwardedEnv lists host variables passed into the build container when set.
var ForwardedEnv = []string{
	"CONDA_OVERRIDE_CUDA",
	"WV_FORGE_CHANNEL_URL",
	"S3_ACCESS_KEY_ID",
	"S3_SECRET_ACCESS_KEY",
	"S3_REGION",
}

// DockerRunnerAdapter runs builds inside the conda-forge build image with
// the repository mounted read-only.
type DockerRunnerAdapter struct {
	Binary string
	// CacheHome overrides the XDG cache home for the rattler and sccache
	// mounts.
	CacheHome string
	UID       int
}

func NewDockerRunnerAdapter() DockerRunnerAdapter {
	return DockerRunnerAdapter{Binary: "docker", CacheHome: xdg.CacheHome, UID: os.Getuid()}
}

// Command composes the docker run invocation and creates the host cache
// and output directories it mounts.
func (a DockerRunnerAdapter) Command(run types.ContainerRun) ([]string, error) {
	if len(run.Packages) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no packages selected")
	}
	repoRoot, err := filepath.Abs(run.RepoRoot)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid repository root").
			WithCause(err)
	}
	outputDir := run.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(repoRoot, "output")
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid output directory").
			WithCause(err)
	}
	specs, err := containerSpecs(repoRoot, run.Packages)
	if err != nil {
		return nil, err
	}
	rattlerCache := filepath.Join(a.cacheHome(), "rattler")
	sccacheDir := filepath.Join(a.cacheHome(), "sccache")
	dirs := []string{outputDir, rattlerCache}
	if run.Sccache {
		dirs = append(dirs, sccacheDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create " + dir).
				WithCause(err)
		}
	}

	image := run.Image
	if image == "" {
		image = DefaultBuildImage
	}
	args := []string{a.binary(), "run", "--rm", "--network", "host"}
	if run.Interactive {
		args = append(args, "-it")
	}
	args = append(args,
		"-v", fmt.Sprintf("%s:%s:ro", repoRoot, containerRepo),
		"-v", fmt.Sprintf("%s:%s/output", outputDir, containerRepo),
		"-v", fmt.Sprintf("%s:%s/rattler", rattlerCache, containerCache),
	)
	if run.Sccache {
		args = append(args, "-v", fmt.Sprintf("%s:%s/sccache", sccacheDir, containerCache))
	}
	sccache := "0"
	if run.Sccache {
		sccache = "1"
	}
	jobs := ""
	if run.Jobs > 0 {
		jobs = strconv.Itoa(run.Jobs)
	}
	args = append(args,
		"-e", "BUILD_PACKAGES="+strings.Join(specs, ";"),
		"-e", "SCCACHE_ENABLED="+sccache,
		"-e", "HOST_USER_ID="+strconv.Itoa(a.UID),
		"-e", "BUILD_JOBS="+jobs,
	)
	keys := make([]string, 0, len(run.Forward))
	for key, value := range run.Forward {
		if value != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-e", key+"="+run.Forward[key])
	}
	args = append(args, image, "bash", containerScript)
	return args, nil
}

func (a DockerRunnerAdapter) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty container command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("container build failed").
			WithCause(err)
	}
	return nil
}

// containerSpecs encodes each package as kind:name:recipe with the recipe
// path rewritten to its location inside the container.
func containerSpecs(repoRoot string, packages []types.PackageSpec) ([]string, error) {
	specs := make([]string, 0, len(packages))
	for _, spec := range packages {
		recipe := spec.RecipePath
		if filepath.IsAbs(recipe) {
			rel, err := filepath.Rel(repoRoot, recipe)
			if err != nil || strings.HasPrefix(rel, "..") {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("recipe for %s is outside the repository", spec.Name))
			}
			recipe = rel
		}
		specs = append(specs, fmt.Sprintf("%s:%s:%s/%s", spec.Kind, spec.Name, containerRepo, filepath.ToSlash(recipe)))
	}
	return specs, nil
}

func (a DockerRunnerAdapter) cacheHome() string {
	if a.CacheHome != "" {
		return a.CacheHome
	}
	return xdg.CacheHome
}

func (a DockerRunnerAdapter) binary() string {
	if a.Binary == "" {
		return "docker"
	}
	return a.Binary
}

var _ ports.ContainerRunnerPort = DockerRunnerAdapter{}
