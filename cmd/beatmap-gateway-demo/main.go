// Command beatmap-gateway-demo wires the five concrete mirror
// backends through pkg/gateway.Bootstrap and fetches one beatmapset
// archive, to exercise the orchestrator end-to-end outside of tests.
// It is a demonstration seam, not the HTTP front-end spec.md §1
// excludes from this repository's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/gateway"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	beatmapsetID := flag.Uint64("beatmapset-id", 1, "beatmapset to fetch an archive for")
	metricsAddr := flag.String("metrics-listen-address", ":9090", "address to serve /metrics on")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("serving metrics on %s", *metricsAddr)
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Print("metrics server: ", err)
		}
	}()

	orch, err := gateway.Bootstrap(gateway.Config{
		Mirrors: []gateway.MirrorConfig{
			{Kind: gateway.BackendMino},
			{Kind: gateway.BackendNerinyan},
			{Kind: gateway.BackendOsuDirect},
			{Kind: gateway.BackendGatari, Disabled: true},
			{Kind: gateway.BackendRipple},
		},
		Resources: []gateway.ResourceConfig{
			{Resource: mirror.ResourceBackgroundImage, UseHedge: true},
		},
		Store: telemetry.NewMemoryStore(clock.SystemClock, telemetry.DefaultConfig()),
	})
	if err != nil {
		log.Fatal("failed to bootstrap gateway: ", err)
	}

	data, found, err := orch.FetchArchive(ctx, *beatmapsetID, "")
	if err != nil {
		log.Fatal("fetch archive: ", err)
	}
	if !found {
		fmt.Printf("beatmapset %d not found on any configured mirror\n", *beatmapsetID)
		return
	}
	fmt.Printf("fetched beatmapset %d archive: %d bytes\n", *beatmapsetID, len(data))
}
