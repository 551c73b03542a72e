package mirror

import "github.com/catboybest/beatmap-mirror-gateway/pkg/clock"

// The following constructors mirror the five upstreams the original
// Python service balanced across (app/adapters/osu_mirrors/backends/).
// Each declares its own base URL, URL templates and supported resource
// subset; disabled-by-default mirrors document the reason inline, the
// same way the original commented out its selector's mirror list.

// NewMino returns the "mino" backend (central.catboy.best). Supports
// legacy .osz2 archives and background images.
func NewMino(cfg Config, c clock.Clock) Backend {
	cfg.Name = "mino"
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://central.catboy.best"
	}
	cfg.SupportedResources = []Resource{ResourceOsz2File, ResourceBackgroundImage}
	return newHTTPBackend(cfg, c, "/d/%d", "/preview/background/%d", "", "")
}

// NewNerinyan returns the "nerinyan" backend. Supports current .osz
// archives, background images and Cheesegull-shaped metadata.
func NewNerinyan(cfg Config, c clock.Clock) Backend {
	cfg.Name = "nerinyan"
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.nerinyan.moe"
	}
	cfg.SupportedResources = []Resource{
		ResourceOszFile, ResourceBackgroundImage,
		ResourceCheesegullBeatmap, ResourceCheesegullBeatmapset,
	}
	return newHTTPBackend(cfg, c,
		"/d/%d",
		"/api/media/background/%d",
		"/api/b/%d",
		"/api/s/%d",
	)
}

// NewOsuDirect returns the "osu_direct" backend. Supports current .osz
// archives and Cheesegull-shaped metadata.
func NewOsuDirect(cfg Config, c clock.Clock) Backend {
	cfg.Name = "osu_direct"
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://osu.direct"
	}
	cfg.SupportedResources = []Resource{
		ResourceOszFile, ResourceCheesegullBeatmap, ResourceCheesegullBeatmapset,
	}
	return newHTTPBackend(cfg, c, "/d/%d", "", "/api/b/%d", "/api/s/%d")
}

// NewGatari returns the "gatari" backend. Supports only legacy .osz2
// archives — the original backend (backends/gatari.py) implements
// fetch_beatmap_zip_data alone, with no background-image or metadata
// method. The demo wiring (cmd/beatmap-gateway-demo) marks it Disabled
// because its rate limit is very low - the same reason the original
// selector kept it commented out; pkg/gateway itself registers it
// unless its MirrorConfig sets Disabled.
func NewGatari(cfg Config, c clock.Clock) Backend {
	cfg.Name = "gatari"
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://osu.gatari.pw"
	}
	cfg.SupportedResources = []Resource{ResourceOsz2File}
	return newHTTPBackend(cfg, c, "/d/%d", "", "", "")
}

// NewRipple returns the "ripple" backend. Only exposes Cheesegull
// metadata: Ripple's mirror only indexes ranked maps, so archive and
// background fetches are not attempted against it.
func NewRipple(cfg Config, c clock.Clock) Backend {
	cfg.Name = "ripple"
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://storage.ripple.moe"
	}
	cfg.SupportedResources = []Resource{ResourceCheesegullBeatmap, ResourceCheesegullBeatmapset}
	return newHTTPBackend(cfg, c, "", "", "/api/b/%d", "/api/s/%d")
}
