package app

import (
	"context"
	"sync"

	"wv-forge/internal/ports"
	"wv-forge/internal/types"
)

type stubManifest struct {
	manifest types.Manifest
	err      error
}

func (s stubManifest) LoadManifest(_ string) (types.Manifest, error) {
	return s.manifest, s.err
}

type stubVariants struct {
	axes types.VariantAxes
}

func (s stubVariants) LoadVariants(_ string) (types.VariantAxes, error) {
	return s.axes, nil
}

type stubDiscovery struct {
	specs []types.PackageSpec
}

func (s stubDiscovery) Discover(_ string) ([]types.PackageSpec, error) {
	return s.specs, nil
}

type stubBuilder struct {
	mu    sync.Mutex
	fail  map[string]bool
	flags map[string]ports.BuildFlags
}

func (b *stubBuilder) Build(_ context.Context, spec types.PackageSpec, flags ports.BuildFlags) types.BuildResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flags == nil {
		b.flags = map[string]ports.BuildFlags{}
	}
	b.flags[spec.Name] = flags
	return types.BuildResult{Name: spec.Name, OK: !b.fail[spec.Name]}
}

type stubTool struct {
	err error
}

func (s stubTool) EnsureTool(_ context.Context, name string) (string, error) {
	return "/usr/bin/" + name, s.err
}

type stubScanner struct {
	artifacts []types.Artifact
}

func (s stubScanner) Mark(_ string, level int) (types.Marker, error) {
	return types.Marker{Level: level}, nil
}

func (s stubScanner) Since(_ string, _ types.Marker) ([]types.Artifact, error) {
	return s.artifacts, nil
}

func (s stubScanner) All(_ string) ([]types.Artifact, error) {
	return s.artifacts, nil
}

type stubChannel struct {
	mu        sync.Mutex
	present   map[string]bool
	failOn    string
	published []string
	inited    []string
}

func (c *stubChannel) Publish(_ context.Context, artifact types.Artifact) (types.PublishOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if artifact.FileName == c.failOn {
		return "", context.DeadlineExceeded
	}
	if c.present[artifact.FileName] {
		return types.PublishOutcomeAlreadyPresent, nil
	}
	c.published = append(c.published, artifact.FileName)
	return types.PublishOutcomePublished, nil
}

func (c *stubChannel) InitChannel(_ context.Context, subdirs []string) error {
	c.inited = append(c.inited, subdirs...)
	return nil
}

type stubCredentials struct {
	calls    int
	cleaned  *bool
	env      []string
	lastCred types.S3Credentials
}

func (s *stubCredentials) Prepare(_ types.ChannelTarget, creds types.S3Credentials) ([]string, func(), error) {
	s.calls++
	s.lastCred = creds
	return s.env, func() {
		if s.cleaned != nil {
			*s.cleaned = true
		}
	}, nil
}

type stubOutputs struct {
	built   map[string]bool
	removed []string
}

func (s *stubOutputs) IsBuilt(_ string, spec types.PackageSpec, _ int) (bool, error) {
	return s.built[spec.Name], nil
}

func (s *stubOutputs) Clean(_ string, dryRun bool) ([]string, error) {
	if !dryRun {
		s.built = map[string]bool{}
	}
	return s.removed, nil
}

type stubContainers struct {
	run     []types.ContainerRun
	started [][]string
	err     error
}

func (s *stubContainers) Command(run types.ContainerRun) ([]string, error) {
	s.run = append(s.run, run)
	return []string{"docker", "run", run.Image}, nil
}

func (s *stubContainers) Run(_ context.Context, args []string) error {
	s.started = append(s.started, args)
	return s.err
}

type testService struct {
	Service
	builder     *stubBuilder
	channel     *stubChannel
	credentials *stubCredentials
	channelKind types.ChannelKind
}

func newTestService(manifest types.Manifest, artifacts []types.Artifact) *testService {
	ts := &testService{
		builder:     &stubBuilder{fail: map[string]bool{}},
		channel:     &stubChannel{present: map[string]bool{}},
		credentials: &stubCredentials{env: []string{"RATTLER_AUTH_FILE=/tmp/auth.json"}},
	}
	scanner := stubScanner{artifacts: artifacts}
	ts.Service = Service{
		Manifest:      stubManifest{manifest: manifest},
		VariantSource: stubVariants{},
		Scanner:       scanner,
		Inventory:     scanner,
		Credentials:   ts.credentials,
		Builders: func(_ string) (ports.BuilderPort, ports.ToolPort) {
			return ts.builder, stubTool{}
		},
		Channels: func(target types.ChannelTarget, _ ChannelOptions) (ports.ChannelPort, error) {
			ts.channelKind = target.Kind
			return ts.channel, nil
		},
		NewRunID: func() string { return "run-1" },
	}
	return ts
}
