package types

// ContainerRun describes one containerized build of a package selection.
type ContainerRun struct {
	Image     string
	RepoRoot  string
	OutputDir string
	Packages  []PackageSpec
	Sccache   bool
	Jobs      int
	// Interactive attaches a TTY to the container.
	Interactive bool
	// Forward holds variables passed through to the container when set.
	Forward map[string]string
}
