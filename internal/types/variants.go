package types

// VariantAxes is the parsed form of a variants.yaml file.
type VariantAxes struct {
	Axes    map[string][]string
	ZipKeys [][]string
	// Extra holds non-axis keys (for example channel_sources) that are
	// passed through to the build tool untouched.
	Extra map[string]any
}

type VariantConfig map[string]string
