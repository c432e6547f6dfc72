package adapters

import (
	"context"
	_ "crypto/sha256"
	"io"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// FileChannelAdapter publishes into a channel laid out on the local
// filesystem as <dir>/<subdir>/<file>. Each publish re-indexes the subdir
// so the next level can resolve the artifact.
type FileChannelAdapter struct {
	Dir string
}

func NewFileChannelAdapter(dir string) FileChannelAdapter {
	return FileChannelAdapter{Dir: dir}
}

func (a FileChannelAdapter) Publish(ctx context.Context, artifact types.Artifact) (types.PublishOutcome, error) {
	if a.Dir == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("channel directory is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	destDir := filepath.Join(a.Dir, artifact.Subdir)
	destPath := filepath.Join(destDir, artifact.FileName)
	if _, err := os.Stat(destPath); err == nil {
		same, err := sameContent(artifact.Path, destPath)
		if err != nil {
			return "", err
		}
		if !same {
			zerolog.Ctx(ctx).Warn().
				Str("file", artifact.FileName).
				Msg("channel already holds a different build under this name; keeping the existing file")
		}
		if err := a.index(ctx, artifact.Subdir); err != nil {
			return "", err
		}
		return types.PublishOutcomeAlreadyPresent, nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create channel subdir").
			WithCause(err)
	}
	if err := copyArtifact(artifact.Path, destPath); err != nil {
		return "", err
	}
	if err := a.index(ctx, artifact.Subdir); err != nil {
		return "", err
	}
	return types.PublishOutcomePublished, nil
}

// index refreshes the artifact's subdir and makes sure noarch has an
// index, which conda clients require.
func (a FileChannelAdapter) index(ctx context.Context, subdir string) error {
	if err := indexSubdir(ctx, filepath.Join(a.Dir, subdir), subdir); err != nil {
		return err
	}
	if subdir == "noarch" {
		return nil
	}
	return a.InitChannel(ctx, []string{"noarch"})
}

// InitChannel indexes each subdir that has no repodata.json yet.
func (a FileChannelAdapter) InitChannel(ctx context.Context, subdirs []string) error {
	for _, subdir := range subdirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(a.Dir, subdir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create channel subdir").
				WithCause(err)
		}
		if _, err := os.Stat(filepath.Join(dir, repodataFile)); err == nil {
			zerolog.Ctx(ctx).Debug().Str("subdir", subdir).Msg("repodata already present")
			continue
		}
		if err := indexSubdir(ctx, dir, subdir); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("subdir", subdir).Msg("initialized channel subdir")
	}
	return nil
}

// copyArtifact writes through a temporary file so a reader never sees a
// partial artifact.
func copyArtifact(srcPath string, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open artifact").
			WithCause(err)
	}
	defer srcFile.Close()
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create destination artifact").
			WithCause(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, srcFile); err != nil {
		tmp.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to copy artifact").
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to copy artifact").
			WithCause(err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to move artifact into channel").
			WithCause(err)
	}
	return nil
}

func sameContent(a string, b string) (bool, error) {
	left, err := fileDigest(a)
	if err != nil {
		return false, err
	}
	right, err := fileDigest(b)
	if err != nil {
		return false, err
	}
	return left == right, nil
}

func fileDigest(path string) (digest.Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open artifact").
			WithCause(err)
	}
	defer file.Close()
	d, err := digest.FromReader(file)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to hash artifact").
			WithCause(err)
	}
	return d, nil
}

var _ ports.ChannelPublisherPort = FileChannelAdapter{}
var _ ports.ChannelInitPort = FileChannelAdapter{}
