package selector_test

import (
	"context"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
)

// fakeBackend is a minimal mirror.Backend used by selector tests; it
// never performs real I/O and its responses are scripted per-call.
type fakeBackend struct {
	name      string
	archive   []mirror.Response[[]byte]
	callCount int
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) SupportedResources() map[mirror.Resource]struct{} {
	return map[mirror.Resource]struct{}{mirror.ResourceOszFile: {}}
}

func (f *fakeBackend) FetchArchive(ctx context.Context, beatmapsetID uint64) mirror.Response[[]byte] {
	defer func() { f.callCount++ }()
	if f.callCount < len(f.archive) {
		return f.archive[f.callCount]
	}
	return mirror.Success([]byte("PK\x03\x04"), f.name, 200)
}

func (f *fakeBackend) FetchBackgroundImage(ctx context.Context, beatmapID uint64) mirror.Response[[]byte] {
	return mirror.Success([]byte{0xff, 0xd8}, f.name, 200)
}

func (f *fakeBackend) FetchMetadataBeatmap(ctx context.Context, beatmapID uint64) mirror.Response[mirror.JSON] {
	return mirror.Success(mirror.JSON(`{}`), f.name, 200)
}

func (f *fakeBackend) FetchMetadataBeatmapset(ctx context.Context, beatmapsetID uint64) mirror.Response[mirror.JSON] {
	return mirror.Success(mirror.JSON(`{}`), f.name, 200)
}
