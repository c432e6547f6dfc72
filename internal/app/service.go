package app

import (
	"github.com/google/uuid"

	"wv-forge/internal/adapters"
	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

// BuilderFactory returns the build and tool ports for a build tool binary.
type BuilderFactory func(binary string) (ports.BuilderPort, ports.ToolPort)

// ChannelFactory returns the publisher for a parsed channel target.
type ChannelFactory func(target types.ChannelTarget, opts ChannelOptions) (ports.ChannelPort, error)

type Service struct {
	Manifest      ports.ManifestPort
	Discovery     ports.RecipeDiscoveryPort
	VariantSource ports.VariantsPort
	Scanner       ports.ArtifactScannerPort
	Inventory     ports.ArtifactInventoryPort
	Credentials   ports.CredentialsPort
	Outputs       ports.OutputStorePort
	Containers    ports.ContainerRunnerPort
	Builders      BuilderFactory
	Channels      ChannelFactory
	NewRunID      func() string
}

func NewService() Service {
	scanner := adapters.NewArtifactScanAdapter()
	return Service{
		Manifest:      adapters.NewManifestFileAdapter(),
		Discovery:     adapters.NewRecipeDiscoveryAdapter(),
		VariantSource: adapters.NewVariantsFileAdapter(),
		Scanner:       scanner,
		Inventory:     scanner,
		Credentials:   adapters.NewS3CredentialsAdapter(),
		Outputs:       adapters.NewOutputStoreAdapter(),
		Containers:    adapters.NewDockerRunnerAdapter(),
		Builders:      newRattlerBuilder,
		Channels:      NewChannel,
		NewRunID:      uuid.NewString,
	}
}

func newRattlerBuilder(binary string) (ports.BuilderPort, ports.ToolPort) {
	adapter := adapters.NewRattlerBuildAdapter(binary, nil)
	return adapter, adapter
}

func (s Service) runID() string {
	if s.NewRunID != nil {
		return s.NewRunID()
	}
	return uuid.NewString()
}
