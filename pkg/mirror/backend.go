package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/util"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JSON is a decoded-later JSON payload, used for the two Cheesegull
// metadata resources. Callers unmarshal it into whatever shape they
// expect; the gateway core does not know the Akatsuki metadata model.
type JSON = json.RawMessage

// Backend is the capability interface every concrete mirror exposes.
// A mirror only implements the methods matching its SupportedResources;
// the others return a Response with IsSuccess == false and a
// descriptive error, so that a misconfigured registry fails loudly
// instead of silently skipping a resource.
//
// No method ever returns a Go error. Every outcome, including
// transport failures, is reported through the Response envelope -
// see response.go.
type Backend interface {
	Name() string
	SupportedResources() map[Resource]struct{}

	FetchArchive(ctx context.Context, beatmapsetID uint64) Response[[]byte]
	FetchBackgroundImage(ctx context.Context, beatmapID uint64) Response[[]byte]
	FetchMetadataBeatmap(ctx context.Context, beatmapID uint64) Response[JSON]
	FetchMetadataBeatmapset(ctx context.Context, beatmapsetID uint64) Response[JSON]
}

// Config describes a single mirror backend. It is the unit the
// external configuration surface (spec.md §6 "MIRRORS[*]") is built
// from; loading it from a file is a peer concern, not this package's.
type Config struct {
	Name               string
	BaseURL            string
	SupportedResources []Resource

	// ConnectTimeout bounds TCP connection setup (the dialer timeout).
	// Defaults to 2s.
	ConnectTimeout time.Duration
	// TotalTimeout bounds the whole request, including body read.
	// Defaults to 12s.
	TotalTimeout time.Duration

	// RequestsPerSecond, when non-zero, causes the registry to attach
	// a token-bucket rate limiter to this mirror (see pkg/mirror/health).
	RequestsPerSecond float64

	// RateLimitHeaderName/Value inject a per-mirror header secret
	// (e.g. "x-ratelimit-key") on every outbound request, a feature
	// only one known backend needs.
	RateLimitHeaderName  string
	RateLimitHeaderValue string
}

const userAgent = "osu!beatmap-mirror-gateway/1.0 (+https://github.com/catboybest/beatmap-mirror-gateway)"

// httpBackend is the concrete Backend implementation shared by every
// upstream mirror; only the URL templates and supported resources
// differ between mirrors (see backends.go).
type httpBackend struct {
	config     Config
	httpClient util.HTTPClient
	clock      clock.Clock
	resources  map[Resource]struct{}

	archivePath    string // e.g. "/d/%d"
	backgroundPath string // e.g. "/preview/background/%d"
	beatmapPath    string // metadata endpoints vary per backend
	beatmapsetPath string
}

// newHTTPBackend constructs the shared HTTP plumbing for a concrete
// mirror. Individual mirrors (backends.go) supply their URL templates.
func newHTTPBackend(cfg Config, c clock.Clock, archivePath, backgroundPath, beatmapPath, beatmapsetPath string) *httpBackend {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	return &httpBackend{
		config: cfg,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
		},
		clock:          c,
		resources:      toResourceSet(cfg.SupportedResources),
		archivePath:    archivePath,
		backgroundPath: backgroundPath,
		beatmapPath:    beatmapPath,
		beatmapsetPath: beatmapsetPath,
	}
}

func toResourceSet(resources []Resource) map[Resource]struct{} {
	set := make(map[Resource]struct{}, len(resources))
	for _, r := range resources {
		set[r] = struct{}{}
	}
	return set
}

func (b *httpBackend) Name() string { return b.config.Name }

func (b *httpBackend) SupportedResources() map[Resource]struct{} { return b.resources }

func (b *httpBackend) totalTimeout() time.Duration {
	if b.config.TotalTimeout > 0 {
		return b.config.TotalTimeout
	}
	return 12 * time.Second
}

// fetchBytes performs a single GET request against url and maps the
// outcome to the envelope contract of spec.md §4.1:
//   - 2xx -> success, body bytes
//   - 404/451 -> success, absent (authoritative not-found)
//   - anything else -> failure
func (b *httpBackend) fetchBytes(ctx context.Context, url string) Response[[]byte] {
	ctx, cancel := b.clock.NewContextWithTimeout(ctx, b.totalTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Failure[[]byte](url, nil, util.StatusWrapWithCode(err, codes.Internal, "failed to build request"))
	}
	req.Header.Set("User-Agent", userAgent)
	if b.config.RateLimitHeaderName != "" {
		req.Header.Set(b.config.RateLimitHeaderName, b.config.RateLimitHeaderValue)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Failure[[]byte](url, nil, util.StatusWrapWithCode(err, codes.Unavailable, fmt.Sprintf("%s: transport error", b.config.Name)))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusUnavailableForLegalReasons:
		return Absent[[]byte](url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		code := resp.StatusCode
		return Failure[[]byte](url, &code, util.StatusWrapWithCode(err, codes.Unavailable, fmt.Sprintf("%s: failed to read response body", b.config.Name)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := resp.StatusCode
		return Failure[[]byte](url, &code, status.Errorf(codes.Unknown, "%s: unexpected status %d", b.config.Name, resp.StatusCode))
	}

	return Success(body, url, resp.StatusCode)
}

func (b *httpBackend) FetchArchive(ctx context.Context, beatmapsetID uint64) Response[[]byte] {
	if b.archivePath == "" {
		return unsupported[[]byte](b.config.Name, ResourceOszFile)
	}
	return b.fetchBytes(ctx, b.config.BaseURL+fmt.Sprintf(b.archivePath, beatmapsetID))
}

func (b *httpBackend) FetchBackgroundImage(ctx context.Context, beatmapID uint64) Response[[]byte] {
	if b.backgroundPath == "" {
		return unsupported[[]byte](b.config.Name, ResourceBackgroundImage)
	}
	return b.fetchBytes(ctx, b.config.BaseURL+fmt.Sprintf(b.backgroundPath, beatmapID))
}

func (b *httpBackend) FetchMetadataBeatmap(ctx context.Context, beatmapID uint64) Response[JSON] {
	if b.beatmapPath == "" {
		return unsupported[JSON](b.config.Name, ResourceCheesegullBeatmap)
	}
	resp := b.fetchBytes(ctx, b.config.BaseURL+fmt.Sprintf(b.beatmapPath, beatmapID))
	return remapJSON(resp)
}

func (b *httpBackend) FetchMetadataBeatmapset(ctx context.Context, beatmapsetID uint64) Response[JSON] {
	if b.beatmapsetPath == "" {
		return unsupported[JSON](b.config.Name, ResourceCheesegullBeatmapset)
	}
	resp := b.fetchBytes(ctx, b.config.BaseURL+fmt.Sprintf(b.beatmapsetPath, beatmapsetID))
	return remapJSON(resp)
}

func remapJSON(resp Response[[]byte]) Response[JSON] {
	out := Response[JSON]{
		IsSuccess:  resp.IsSuccess,
		RequestURL: resp.RequestURL,
		StatusCode: resp.StatusCode,
		Error:      resp.Error,
	}
	if resp.HasData {
		out.Data = JSON(resp.Data)
		out.HasData = true
	}
	return out
}

func unsupported[T any](name string, resource Resource) Response[T] {
	return Failure[T]("", nil, status.Errorf(codes.Unimplemented, "%s does not support resource %s", name, resource))
}
