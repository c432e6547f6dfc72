package adapters

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"wv-forge/internal/core"
)

const repodataFile = "repodata.json"

type channelRepodata struct {
	Info            map[string]string         `json:"info"`
	Packages        map[string]map[string]any `json:"packages"`
	PackagesConda   map[string]map[string]any `json:"packages.conda"`
	Removed         []string                  `json:"removed"`
	RepodataVersion int                       `json:"repodata_version"`
}

func newChannelRepodata(subdir string) channelRepodata {
	return channelRepodata{
		Info:            map[string]string{"subdir": subdir},
		Packages:        map[string]map[string]any{},
		PackagesConda:   map[string]map[string]any{},
		Removed:         []string{},
		RepodataVersion: 1,
	}
}

// indexSubdir rewrites dir/repodata.json from the archives dir holds.
// Records already indexed with the same size are kept as they are.
func indexSubdir(ctx context.Context, dir string, subdir string) error {
	previous := readRepodata(filepath.Join(dir, repodataFile))
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read channel subdir").
			WithCause(err)
	}
	index := newChannelRepodata(subdir)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() || !isArtifactFile(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to stat channel artifact").
				WithCause(err)
		}
		bucket, known := index.PackagesConda, previous.PackagesConda
		if strings.HasSuffix(name, ".tar.bz2") {
			bucket, known = index.Packages, previous.Packages
		}
		if record, ok := known[name]; ok && recordSize(record) == info.Size() {
			bucket[name] = record
			continue
		}
		record, err := packageRecord(ctx, filepath.Join(dir, name), subdir, info.Size())
		if err != nil {
			return err
		}
		bucket[name] = record
	}
	return writeRepodata(dir, index)
}

// packageRecord reads info/index.json from the archive and adds the
// checksum and size. Archives without readable metadata are described
// from their file name.
func packageRecord(ctx context.Context, path string, subdir string, size int64) (map[string]any, error) {
	record, err := readIndexJSON(path)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", filepath.Base(path)).Msg("archive metadata unreadable, indexing from file name")
		record = recordFromFileName(filepath.Base(path), subdir)
	}
	sum, err := fileDigest(path)
	if err != nil {
		return nil, err
	}
	record["sha256"] = sum.Encoded()
	record["size"] = size
	if _, ok := record["subdir"]; !ok {
		record["subdir"] = subdir
	}
	return record, nil
}

func recordFromFileName(fileName string, subdir string) map[string]any {
	name, version, build, _ := core.ParseArtifactFileName(fileName)
	buildNumber := 0
	if i := strings.LastIndex(build, "_"); i >= 0 {
		buildNumber, _ = strconv.Atoi(build[i+1:])
	}
	record := map[string]any{
		"name":         name,
		"version":      version,
		"build":        build,
		"build_number": buildNumber,
		"depends":      []string{},
		"subdir":       subdir,
	}
	if subdir == "noarch" {
		record["noarch"] = "generic"
	}
	return record
}

func readIndexJSON(path string) (map[string]any, error) {
	if strings.HasSuffix(path, ".tar.bz2") {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return indexFromTar(bzip2.NewReader(file))
	}
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	for _, member := range archive.File {
		if !strings.HasPrefix(member.Name, "info-") || !strings.HasSuffix(member.Name, ".tar.zst") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		decoder, err := zstd.NewReader(rc)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return indexFromTar(decoder)
	}
	return nil, fmt.Errorf("no info archive in %s", filepath.Base(path))
}

func indexFromTar(r io.Reader) (map[string]any, error) {
	reader := tar.NewReader(r)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("info/index.json not found")
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimPrefix(header.Name, "./") != "info/index.json" {
			continue
		}
		record := map[string]any{}
		if err := json.NewDecoder(reader).Decode(&record); err != nil {
			return nil, err
		}
		return record, nil
	}
}

func readRepodata(path string) channelRepodata {
	index := channelRepodata{}
	data, err := os.ReadFile(path)
	if err != nil {
		return index
	}
	_ = json.Unmarshal(data, &index)
	return index
}

func writeRepodata(dir string, index channelRepodata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create channel subdir").
			WithCause(err)
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode repodata").
			WithCause(err)
	}
	tmp, err := os.CreateTemp(dir, ".repodata-*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write repodata").
			WithCause(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write repodata").
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write repodata").
			WithCause(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write repodata").
			WithCause(err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, repodataFile)); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write repodata").
			WithCause(err)
	}
	return nil
}

func recordSize(record map[string]any) int64 {
	switch size := record["size"].(type) {
	case float64:
		return int64(size)
	case int64:
		return size
	case int:
		return int64(size)
	default:
		return -1
	}
}
