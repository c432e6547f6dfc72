package types

// PackageSpec describes one recipe the driver can build. Name is the
// identity; specs are never mutated after the manifest is loaded.
type PackageSpec struct {
	Name       string    `yaml:"name"`
	Kind       BuildKind `yaml:"kind,omitempty"`
	RecipePath string    `yaml:"recipe"`
}

// Level is a batch of packages that only depend on earlier levels.
type Level struct {
	Name     string        `yaml:"name"`
	Packages []PackageSpec `yaml:"packages"`
}

type Manifest struct {
	Levels []Level `yaml:"levels"`
}

// Names returns the package names of the level in declared order.
func (l Level) Names() []string {
	names := make([]string, 0, len(l.Packages))
	for _, spec := range l.Packages {
		names = append(names, spec.Name)
	}
	return names
}
