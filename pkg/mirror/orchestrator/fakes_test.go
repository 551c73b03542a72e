package orchestrator_test

import (
	"context"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
)

// scriptedBackend returns one scripted Response[[]byte] per call to
// FetchArchive, in order; once exhausted it repeats the last entry.
// The other three Backend methods are unused by these tests.
type scriptedBackend struct {
	name    string
	script  []mirror.Response[[]byte]
	calls   int
	resources map[mirror.Resource]struct{}
}

func newScriptedBackend(name string, resources []mirror.Resource, script ...mirror.Response[[]byte]) *scriptedBackend {
	set := make(map[mirror.Resource]struct{}, len(resources))
	for _, r := range resources {
		set[r] = struct{}{}
	}
	return &scriptedBackend{name: name, script: script, resources: set}
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) SupportedResources() map[mirror.Resource]struct{} { return b.resources }

func (b *scriptedBackend) FetchArchive(ctx context.Context, beatmapsetID uint64) mirror.Response[[]byte] {
	defer func() { b.calls++ }()
	if len(b.script) == 0 {
		return mirror.Success([]byte("PK\x03\x04"), b.name, 200)
	}
	idx := b.calls
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	return b.script[idx]
}

func (b *scriptedBackend) FetchBackgroundImage(ctx context.Context, beatmapID uint64) mirror.Response[[]byte] {
	return mirror.Success([]byte{0xff, 0xd8}, b.name, 200)
}

func (b *scriptedBackend) FetchMetadataBeatmap(ctx context.Context, beatmapID uint64) mirror.Response[mirror.JSON] {
	return mirror.Success(mirror.JSON(`{}`), b.name, 200)
}

func (b *scriptedBackend) FetchMetadataBeatmapset(ctx context.Context, beatmapsetID uint64) mirror.Response[mirror.JSON] {
	return mirror.Success(mirror.JSON(`{}`), b.name, 200)
}

func (b *scriptedBackend) CallCount() int { return b.calls }
