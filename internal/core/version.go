package core

import (
	"sort"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"

	"wv-forge/internal/types"
)

// versionCache memoizes parsed versions while sorting artifact lists.
type versionCache struct {
	pep map[string]*pep440.Version
	deb map[string]*debversion.Version
}

func newVersionCache() *versionCache {
	return &versionCache{
		pep: map[string]*pep440.Version{},
		deb: map[string]*debversion.Version{},
	}
}

func (c *versionCache) pepVersion(value string) *pep440.Version {
	if parsed, ok := c.pep[value]; ok {
		return parsed
	}
	var result *pep440.Version
	if parsed, err := pep440.Parse(value); err == nil {
		result = &parsed
	}
	c.pep[value] = result
	return result
}

func (c *versionCache) debVersion(value string) *debversion.Version {
	if parsed, ok := c.deb[value]; ok {
		return parsed
	}
	var result *debversion.Version
	if parsed, err := debversion.NewVersion(value); err == nil {
		result = &parsed
	}
	c.deb[value] = result
	return result
}

// compare orders two versions with PEP 440 semantics, falling back to
// Debian ordering (which accepts most dotted toolkit versions) and finally
// to plain string ordering.
func (c *versionCache) compare(a string, b string) int {
	if pa, pb := c.pepVersion(a), c.pepVersion(b); pa != nil && pb != nil {
		return pa.Compare(*pb)
	}
	if da, db := c.debVersion(a), c.debVersion(b); da != nil && db != nil {
		return da.Compare(*db)
	}
	return strings.Compare(a, b)
}

// CompareVersions returns -1, 0 or 1.
func CompareVersions(a string, b string) int {
	return newVersionCache().compare(a, b)
}

// ParseArtifactFileName splits a conda file name of the form
// name-version-build.conda (or .tar.bz2) into its parts.
func ParseArtifactFileName(fileName string) (name string, version string, build string, ok bool) {
	base := fileName
	switch {
	case strings.HasSuffix(base, ".conda"):
		base = strings.TrimSuffix(base, ".conda")
	case strings.HasSuffix(base, ".tar.bz2"):
		base = strings.TrimSuffix(base, ".tar.bz2")
	default:
		return "", "", "", false
	}
	buildIdx := strings.LastIndex(base, "-")
	if buildIdx <= 0 {
		return "", "", "", false
	}
	versionIdx := strings.LastIndex(base[:buildIdx], "-")
	if versionIdx <= 0 {
		return "", "", "", false
	}
	return base[:versionIdx], base[versionIdx+1 : buildIdx], base[buildIdx+1:], true
}

// LatestArtifacts returns the newest artifact per package name, ordered by
// name. Ties on version are broken by build string.
func LatestArtifacts(artifacts []types.Artifact) []types.Artifact {
	cache := newVersionCache()
	latest := map[string]types.Artifact{}
	for _, artifact := range artifacts {
		current, ok := latest[artifact.Name]
		if !ok {
			latest[artifact.Name] = artifact
			continue
		}
		cmp := cache.compare(artifact.Version, current.Version)
		if cmp > 0 || (cmp == 0 && artifact.BuildString > current.BuildString) {
			latest[artifact.Name] = artifact
		}
	}
	out := make([]types.Artifact, 0, len(latest))
	for _, artifact := range latest {
		out = append(out, artifact)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
