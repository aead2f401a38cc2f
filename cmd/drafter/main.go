// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command drafter runs a lightweight speculation peer: it subscribes to
// the verifier's work topic, drafts or answers verification prompts,
// and publishes results back. It is the C10/C2/C3/C12 side of the
// speculative mesh.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luxfi/speculative-mesh/config"
	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/colocation"
	"github.com/luxfi/speculative-mesh/internal/draftermodel"
	"github.com/luxfi/speculative-mesh/internal/drafterworker"
	"github.com/luxfi/speculative-mesh/internal/handshake"
	"github.com/luxfi/speculative-mesh/internal/mesh"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/registry"
	"github.com/luxfi/speculative-mesh/internal/transport"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

const verifierPeerKey = "verifier"

func main() {
	cmd := rootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "drafter: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listenAddr            string
		handshakeAddr         string
		verifierAddr          string
		verifierHandshakeAddr string
		verifierPubkeyHex     string
		colocationAddr        string
		profile               string
		metricsAddr           string
	)

	cmd := &cobra.Command{
		Use:   "drafter",
		Short: "Run a speculative mesh drafter peer",
		Long: `drafter hosts a lightweight model that speculates tokens on a
verifier's behalf, answers periodic verification prompts honestly, and
recuses itself when a verifier is already local (co-location).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOptions{
				listenAddr:            listenAddr,
				handshakeAddr:         handshakeAddr,
				verifierAddr:          verifierAddr,
				verifierHandshakeAddr: verifierHandshakeAddr,
				verifierPubkeyHex:     verifierPubkeyHex,
				colocationAddr:        colocationAddr,
				profile:               config.Profile(profile),
				metricsAddr:           metricsAddr,
			})
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "tcp://0.0.0.0:6555", "pub/sub bind address, given to the verifier as its --peer")
	cmd.Flags().StringVar(&handshakeAddr, "handshake-listen", "tcp://0.0.0.0:6556", "handshake bind address")
	cmd.Flags().StringVar(&verifierAddr, "verifier-addr", "", "verifier's pub/sub bind address (required)")
	cmd.Flags().StringVar(&verifierHandshakeAddr, "verifier-handshake-addr", "", "verifier's handshake bind address; enables handshake pinging and registry tracking")
	cmd.Flags().StringVar(&verifierPubkeyHex, "verifier-pubkey", "", "verifier's hex-encoded public key (from the bootstrap list); required alongside --verifier-handshake-addr")
	cmd.Flags().StringVar(&colocationAddr, "colocation-probe-addr", "", "local verifier address to probe for co-location; empty disables the probe")
	cmd.Flags().StringVar(&profile, "profile", string(config.Production), "deployment profile: dev, staging, production")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	return cmd
}

type runOptions struct {
	listenAddr            string
	handshakeAddr         string
	verifierAddr          string
	verifierHandshakeAddr string
	verifierPubkeyHex     string
	colocationAddr        string
	profile               config.Profile
	metricsAddr           string
}

func run(ctx context.Context, opts runOptions) error {
	if opts.verifierAddr == "" {
		return fmt.Errorf("--verifier-addr is required")
	}

	config.InitializeRuntime(opts.profile)
	cfg := config.GetRuntime()

	signer, err := wire.NewSigner()
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	selfPeerID := fmt.Sprintf("%x", signer.PublicKeyBytes())

	reg := prometheus.NewRegistry()
	metrics, err := meshmetrics.NewMesh(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, reg)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	node := mesh.New()

	xport := transport.New(runCtx, selfPeerID, nil, metrics)
	if err := xport.Listen(opts.listenAddr); err != nil {
		return fmt.Errorf("listen on %s: %w", opts.listenAddr, err)
	}
	node.Register("transport", func() error { xport.Close(); return nil })

	handshakeSrv, err := handshake.Listen(opts.handshakeAddr)
	if err != nil {
		return fmt.Errorf("listen handshake on %s: %w", opts.handshakeAddr, err)
	}
	node.Register("handshake-server", func() error { handshakeSrv.Close(); return nil })

	if err := xport.Connect(verifierPeerKey, opts.verifierAddr); err != nil {
		return fmt.Errorf("connect verifier %s: %w", opts.verifierAddr, err)
	}

	peerRegistry := registry.New(cfg.PeerStale())
	sweepStop := make(chan struct{})
	go registry.RunSweeper(peerRegistry, cfg.PeerSweep(), sweepStop)
	node.Register("peer-sweeper", func() error { close(sweepStop); return nil })

	var verifierID ids.NodeID
	haveVerifierID := false
	if opts.verifierPubkeyHex != "" {
		verifierID, err = wire.PeerNodeID(opts.verifierPubkeyHex)
		if err != nil {
			return fmt.Errorf("bad --verifier-pubkey: %w", err)
		}
		haveVerifierID = true
		peerRegistry.OnConnect(verifierID, opts.verifierAddr, time.Now())
	}

	reconnectStop := make(chan struct{})
	go reconnectLoop(xport, opts.verifierAddr, cfg.ReconnectInterval(), reconnectStop)
	node.Register("reconnect-loop", func() error { close(reconnectStop); return nil })

	if haveVerifierID && opts.verifierHandshakeAddr != "" {
		pingStop := make(chan struct{})
		go pingLoop(selfPeerID, verifierID, opts.verifierHandshakeAddr, peerRegistry, cfg.ReconnectInterval(), cfg.HandshakeTimeout(), pingStop)
		node.Register("peer-pinger", func() error { close(pingStop); return nil })
	}

	var prober colocation.Prober = colocation.Never{}
	if opts.colocationAddr != "" {
		prober = colocation.NewTCPProber(opts.colocationAddr, cfg.ColocationProbe())
	}

	cat := catalog.New(builtinVerificationPrompts())
	model := draftermodel.NewDeterministicModel(nil)
	worker := drafterworker.New(runCtx, signer, model, cat, prober, xport, metrics, nil, peerRegistry, cfg.AuctionCollect())
	xport.OnMessage(wire.TopicWork, worker.HandleWorkRequest)

	fmt.Fprintf(os.Stderr, "drafter: listening on %s, publishing results to %s\n", opts.listenAddr, opts.verifierAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	cancelRun()
	return node.Close()
}

// reconnectLoop re-dials addr every interval until stop is closed,
// matching spec §4.11's persistent-bootstrap-peer reconnection policy.
// transport.Connect replaces an existing connection harmlessly, so this
// is safe to run unconditionally rather than tracking liveness first.
func reconnectLoop(xport *transport.Transport, addr string, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = xport.Connect(verifierPeerKey, addr)
		}
	}
}

// pingLoop handshake-pings the verifier every interval, recording the
// result in the registry (spec §4.11).
func pingLoop(selfID string, peerID ids.NodeID, handshakeAddr string, reg *registry.Registry, interval, timeout time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := handshake.Ping(handshakeAddr, selfID, timeout); err != nil {
				reg.OnHandshakeFail(peerID, time.Now())
				continue
			}
			reg.OnHandshakeOK(peerID, time.Now())
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	_ = http.ListenAndServe(addr, mux)
}

// builtinVerificationPrompts mirrors the coordinator's catalog; version
// skew between builds is tolerated by design (spec §4.3).
func builtinVerificationPrompts() []catalog.Entry {
	return []catalog.Entry{
		{Prompt: "what is 2+2?", Expected: "4", Mode: catalog.Numeric},
		{Prompt: "what is the capital of france?", Expected: "paris", Mode: catalog.Contains},
		{Prompt: "say the word banana", Expected: "banana", Mode: catalog.Exact},
	}
}
