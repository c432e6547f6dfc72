package ports

import (
	"context"

	"wv-forge/internal/types"
)

type ArtifactScannerPort interface {
	// Mark stamps the start of a level with the output filesystem's clock.
	Mark(dir string, level int) (types.Marker, error)
	// Since lists artifacts under dir that the marker's level produced.
	Since(dir string, marker types.Marker) ([]types.Artifact, error)
}

// ChannelPublisherPort pushes one artifact. An artifact already present at
// the destination is a success with PublishOutcomeAlreadyPresent.
type ChannelPublisherPort interface {
	Publish(ctx context.Context, artifact types.Artifact) (types.PublishOutcome, error)
}

// ChannelInitPort creates empty channel index files.
type ChannelInitPort interface {
	InitChannel(ctx context.Context, subdirs []string) error
}

// ArtifactInventoryPort lists every artifact in an output directory.
type ArtifactInventoryPort interface {
	All(dir string) ([]types.Artifact, error)
}

// ChannelPort is a channel that can be published to and initialized.
type ChannelPort interface {
	ChannelPublisherPort
	ChannelInitPort
}
