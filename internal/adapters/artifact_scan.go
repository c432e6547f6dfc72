package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"wv-forge/internal/core"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

type ArtifactScanAdapter struct{}

func NewArtifactScanAdapter() ArtifactScanAdapter {
	return ArtifactScanAdapter{}
}

// Mark creates and removes a scratch file in dir and returns its mtime as
// the level marker.
func (a ArtifactScanAdapter) Mark(dir string, level int) (types.Marker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Marker{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output directory").
			WithCause(err)
	}
	file, err := os.CreateTemp(dir, fmt.Sprintf(".level-%d-*", level))
	if err != nil {
		return types.Marker{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create level marker").
			WithCause(err)
	}
	defer os.Remove(file.Name())
	info, err := file.Stat()
	file.Close()
	if err != nil {
		return types.Marker{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stat level marker").
			WithCause(err)
	}
	return types.Marker{Level: level, CreatedAt: info.ModTime()}, nil
}

// Since returns artifacts in the platform subdirectories of dir whose
// modification time is not before the marker. A missing output
// directory yields no artifacts.
func (a ArtifactScanAdapter) Since(dir string, marker types.Marker) ([]types.Artifact, error) {
	all, err := a.All(dir)
	if err != nil {
		return nil, err
	}
	var selected []types.Artifact
	for _, artifact := range all {
		if marker.Contains(artifact.ModTime) {
			selected = append(selected, artifact)
		}
	}
	return selected, nil
}

// All returns every artifact in the platform subdirectories of dir,
// ordered by subdirectory then file name.
func (a ArtifactScanAdapter) All(dir string) ([]types.Artifact, error) {
	var artifacts []types.Artifact
	for _, subdir := range types.PlatformSubdirs {
		entries, err := os.ReadDir(filepath.Join(dir, subdir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read output directory").
				WithCause(err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isArtifactFile(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to stat artifact").
					WithCause(err)
			}
			artifacts = append(artifacts, newArtifact(filepath.Join(dir, subdir, entry.Name()), subdir, info))
		}
	}
	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].Subdir != artifacts[j].Subdir {
			return artifacts[i].Subdir < artifacts[j].Subdir
		}
		return artifacts[i].FileName < artifacts[j].FileName
	})
	return artifacts, nil
}

func newArtifact(path string, subdir string, info os.FileInfo) types.Artifact {
	name, version, build, _ := core.ParseArtifactFileName(info.Name())
	return types.Artifact{
		Path:        path,
		Subdir:      subdir,
		FileName:    info.Name(),
		Name:        name,
		Version:     version,
		BuildString: build,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
	}
}

func isArtifactFile(name string) bool {
	return strings.HasSuffix(name, ".conda") || strings.HasSuffix(name, ".tar.bz2")
}

var _ ports.ArtifactScannerPort = ArtifactScanAdapter{}
var _ ports.ArtifactInventoryPort = ArtifactScanAdapter{}
