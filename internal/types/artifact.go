package types

import "time"

// Artifact is a built package file found in the output directory.
type Artifact struct {
	Path        string
	Subdir      string
	FileName    string
	Name        string
	Version     string
	BuildString string
	ModTime     time.Time
	Size        int64
}

// PlatformSubdirs are the conda subdirectories that may hold artifacts.
var PlatformSubdirs = []string{
	"linux-64",
	"linux-aarch64",
	"linux-ppc64le",
	"linux-s390x",
	"osx-64",
	"osx-arm64",
	"win-64",
	"win-arm64",
	"noarch",
}

// IsPlatformSubdir reports whether name is one of PlatformSubdirs.
func IsPlatformSubdir(name string) bool {
	for _, subdir := range PlatformSubdirs {
		if subdir == name {
			return true
		}
	}
	return false
}
