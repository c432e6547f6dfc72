package app

import "wv-forge/internal/types"

// ChannelRequest holds the channel and credential settings shared by the
// commands that talk to a channel.
type ChannelRequest struct {
	ChannelURL       string
	S3               types.S3Credentials
	PrefixAPIKey     string
	RattlerBuild     string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

type BuildRequest struct {
	ChannelRequest
	ManifestPath  string
	VariantsPath  string
	OutputDir     string
	Packages      []string
	ExtraChannels []string
	BuildJobs     int
	Sccache       bool
	SccacheDir    string
	CudaOverride  string
	Parallel      int
	NoPublish     bool
}

type PublishRequest struct {
	ChannelRequest
	OutputDir string
	// Packages limits publishing to these package names when set.
	Packages []string
	DryRun   bool
}

type PublishResult struct {
	Artifacts []types.Artifact
	Published int
	Present   int
	DryRun    bool
}

type ListRequest struct {
	ManifestPath string
	VariantsPath string
	OutputDir    string
	// RepoRoot is scanned for recipes missing from the manifest.
	RepoRoot string
}

type ListEntry struct {
	Level  string
	Spec   types.PackageSpec
	Built  bool
	Latest string
}

type ListResult struct {
	Entries      []ListEntry
	VariantCount int
	// Unlisted names recipes found on disk but absent from the manifest.
	Unlisted []string
}

type VariantsRequest struct {
	VariantsPath string
}

type VariantsResult struct {
	Configs []types.VariantConfig
	Keys    []string
}

type CleanRequest struct {
	OutputDir string
	DryRun    bool
}

type CleanResult struct {
	Removed []string
	DryRun  bool
}

type InitChannelRequest struct {
	ChannelRequest
	Subdirs []string
}

type InitChannelResult struct {
	Channel types.ChannelTarget
	Subdirs []string
}

// LocalCandidate is a package offered for interactive selection.
type LocalCandidate struct {
	Spec  types.PackageSpec
	Built bool
}

// Selector asks the user which candidates to build.
type Selector func(candidates []LocalCandidate) ([]types.PackageSpec, error)

type LocalRequest struct {
	RepoRoot     string
	OutputDir    string
	VariantsPath string
	Packages     []string
	All          bool
	NoarchOnly   bool
	VariantOnly  bool
	Clean        bool
	DryRun       bool
	NoSccache    bool
	Jobs         int
	Image        string
	Interactive  bool
	Forward      map[string]string
	Select       Selector
	NoUpload     bool
	Publish      ChannelRequest
}

type LocalResult struct {
	Selected []types.PackageSpec
	Skipped  []types.PackageSpec
	Removed  []string
	Command  []string
	DryRun   bool
	Publish  *PublishResult
}
