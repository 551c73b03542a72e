// Package gateway wires the mirror backends, health guards, selector
// and telemetry store configured for a deployment into a single
// orchestrator.Orchestrator, mirroring the shape of the teacher's
// newScannableBlobAccess/newNonScannableBlobAccess helpers in
// cmd/bb_storage/main.go. Loading Config itself (from a file, flags,
// or environment) is a peer concern left to the caller, per spec.md §1.
package gateway

import (
	"fmt"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/health"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/orchestrator"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/selector"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/telemetry"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/util"
)

// BackendKind selects which of the five concrete upstreams
// (pkg/mirror/backends.go) a MirrorConfig instantiates.
type BackendKind string

const (
	BackendMino      BackendKind = "mino"
	BackendNerinyan  BackendKind = "nerinyan"
	BackendOsuDirect BackendKind = "osu_direct"
	BackendGatari    BackendKind = "gatari"
	BackendRipple    BackendKind = "ripple"
)

// MirrorConfig is one configured upstream: which concrete backend to
// build, its connection settings, and its per-mirror resilience
// config.
type MirrorConfig struct {
	Kind     BackendKind
	Mirror   mirror.Config
	Circuit  health.CircuitConfig
	Disabled bool
}

// ResourceConfig controls the selection strategy the orchestrator uses
// for one resource kind. Resources with no entry here default to DWRR.
type ResourceConfig struct {
	Resource   mirror.Resource
	UseHedge   bool
	HedgeCount int
}

// Config is the full input to Bootstrap: every upstream to register,
// the per-resource strategy overrides, the telemetry backing store,
// and the ambient validation/logging settings of A.1-A.3.
type Config struct {
	Mirrors    []MirrorConfig
	Resources  []ResourceConfig
	Store      telemetry.Store
	Telemetry  telemetry.Config
	Validation mirror.ValidationConfig
	Logger     util.ErrorLogger
	Clock      clock.Clock
}

func newBackend(kind BackendKind, cfg mirror.Config, c clock.Clock) (mirror.Backend, error) {
	switch kind {
	case BackendMino:
		return mirror.NewMino(cfg, c), nil
	case BackendNerinyan:
		return mirror.NewNerinyan(cfg, c), nil
	case BackendOsuDirect:
		return mirror.NewOsuDirect(cfg, c), nil
	case BackendGatari:
		return mirror.NewGatari(cfg, c), nil
	case BackendRipple:
		return mirror.NewRipple(cfg, c), nil
	default:
		return nil, fmt.Errorf("gateway: unknown backend kind %q", kind)
	}
}

// Bootstrap constructs an Orchestrator from cfg: one Backend+MirrorHealth
// pair per enabled mirror, one DWRR selector per resource those mirrors
// collectively support (or a Hedged-Race selector where Resources
// overrides it), fed by cfg.Store as the shared WeightSource.
func Bootstrap(cfg Config) (*orchestrator.Orchestrator, error) {
	c := cfg.Clock
	if c == nil {
		c = clock.SystemClock
	}
	telemetryCfg := cfg.Telemetry.WithDefaults()
	if cfg.Store == nil {
		cfg.Store = telemetry.NewMemoryStore(c, telemetryCfg)
	}
	validation := cfg.Validation
	if len(validation.ZipMagic) == 0 {
		validation = mirror.DefaultValidationConfig()
	}

	entriesByResource := make(map[mirror.Resource][]*selector.Entry)
	for _, mc := range cfg.Mirrors {
		if mc.Disabled {
			continue
		}
		backend, err := newBackend(mc.Kind, mc.Mirror, c)
		if err != nil {
			return nil, err
		}

		circuitCfg := mc.Circuit
		if circuitCfg.FailureThreshold <= 0 && circuitCfg.CooldownSeconds <= 0 {
			circuitCfg = health.DefaultCircuitConfig()
		}
		h := health.New(health.Config{
			Circuit:           circuitCfg,
			RequestsPerSecond: mc.Mirror.RequestsPerSecond,
		}, c)

		for resource := range backend.SupportedResources() {
			entry := &selector.Entry{Backend: backend, Health: h}
			entry.Weight.Store(int32(telemetryCfg.InitialWeight))
			entriesByResource[resource] = append(entriesByResource[resource], entry)
		}
	}

	strategy := make(map[mirror.Resource]ResourceConfig, len(cfg.Resources))
	for _, rc := range cfg.Resources {
		strategy[rc.Resource] = rc
	}

	sets := make([]*orchestrator.MirrorSet, 0, len(entriesByResource))
	for resource, entries := range entriesByResource {
		set := &orchestrator.MirrorSet{
			Resource: resource,
			Entries:  entries,
			Selector: selector.NewDWRR(resource, cfg.Store, entries),
		}
		if rc, ok := strategy[resource]; ok && rc.UseHedge {
			set.UseHedge = true
			set.HedgeCount = rc.HedgeCount
			if set.HedgeCount <= 0 {
				set.HedgeCount = selector.DefaultHedgeCount
			}
		}
		sets = append(sets, set)
	}

	return orchestrator.New(sets, cfg.Store, c, cfg.Logger, validation), nil
}
