// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command coordinator runs the verifier side of the mesh: it binds the
// pub/sub work topic, the handshake channel, and drives one Speculative
// Loop per completion request.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"net/http"

	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luxfi/speculative-mesh/config"
	"github.com/luxfi/speculative-mesh/internal/auction"
	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/facade"
	"github.com/luxfi/speculative-mesh/internal/handshake"
	"github.com/luxfi/speculative-mesh/internal/inbox"
	"github.com/luxfi/speculative-mesh/internal/mesh"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/registry"
	"github.com/luxfi/speculative-mesh/internal/reputation"
	"github.com/luxfi/speculative-mesh/internal/specloop"
	"github.com/luxfi/speculative-mesh/internal/transport"
	"github.com/luxfi/speculative-mesh/internal/verifiermodel"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

func main() {
	cmd := rootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listenAddr    string
		handshakeAddr string
		peers         []string
		profile       string
		reputationDir string
		metricsAddr   string
		prompt        string
		maxTokens     int
	)

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Run the speculative mesh verifier node",
		Long: `coordinator hosts the heavyweight verifier model, auctions work to
connected drafter peers, and streams a completion for one prompt to
stdout. It is the C9/C8/C6/C4/C1 side of the speculative mesh.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOptions{
				listenAddr:    listenAddr,
				handshakeAddr: handshakeAddr,
				peers:         peers,
				profile:       config.Profile(profile),
				reputationDir: reputationDir,
				metricsAddr:   metricsAddr,
				prompt:        prompt,
				maxTokens:     maxTokens,
			})
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "tcp://0.0.0.0:5555", "pub/sub bind address")
	cmd.Flags().StringVar(&handshakeAddr, "handshake-listen", "tcp://0.0.0.0:5556", "handshake bind address")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "bootstrap drafter peer, as pubsubAddr[@handshakeAddr[@pubkeyHex]] (repeatable); "+
		"the handshake address and public key are optional but required to track the peer in the registry")
	cmd.Flags().StringVar(&profile, "profile", string(config.Production), "deployment profile: dev, staging, production")
	cmd.Flags().StringVar(&reputationDir, "reputation-dir", "./data/reputation", "directory for persisted reputation records")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to complete")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 64, "maximum tokens to emit")

	return cmd
}

type runOptions struct {
	listenAddr    string
	handshakeAddr string
	peers         []string
	profile       config.Profile
	reputationDir string
	metricsAddr   string
	prompt        string
	maxTokens     int
}

func run(ctx context.Context, opts runOptions) error {
	if opts.prompt == "" {
		return fmt.Errorf("--prompt is required")
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

	store, err := reputation.NewFileStore(opts.reputationDir)
	if err != nil {
		return fmt.Errorf("open reputation store: %w", err)
	}
	ledger, err := reputation.New(reputation.Policy{
		MinAttempts: uint64(cfg.ReputationMinAttempts),
		Threshold:   cfg.ReputationThreshold,
		BanDuration: cfg.BanDuration(),
	}, store)
	if err != nil {
		return fmt.Errorf("open reputation ledger: %w", err)
	}

	peerRegistry := registry.New(cfg.PeerStale())
	sweepStop := make(chan struct{})
	go registry.RunSweeper(peerRegistry, cfg.PeerSweep(), sweepStop)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	node := mesh.New()
	node.Register("peer-sweeper", func() error { close(sweepStop); return nil })

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

	ib := inbox.New(cfg.InboxCapacityPerKey, cfg.InboxFingerprintCapacity)
	xport.OnMessage(wire.TopicWorkResult, func(_ string, payload []byte) {
		result, err := wire.DecodeWorkResult(payload)
		if err != nil {
			return
		}
		if peerID, err := wire.PeerNodeID(result.PeerID); err == nil {
			peerRegistry.OnActivity(peerID, time.Now())
		}
		ib.Push(result.RequestID, result.SequenceID, inbox.Draft{
			PeerID:               result.PeerID,
			DraftTokens:          result.DraftTokens,
			LatencyMS:            result.LatencyMS,
			IsVerificationAnswer: result.IsVerificationAnswer,
		})
	})

	pingStop := make(chan struct{})
	node.Register("peer-pinger", func() error { close(pingStop); return nil })

	for _, raw := range opts.peers {
		bp := parseBootstrapPeer(raw)
		if err := xport.Connect(bp.pubsubAddr, bp.pubsubAddr); err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: connect %s: %v\n", bp.pubsubAddr, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "coordinator: connected pub/sub peer %s\n", bp.pubsubAddr)

		if bp.handshakeAddr == "" || bp.pubkeyHex == "" {
			continue
		}
		peerID, err := wire.PeerNodeID(bp.pubkeyHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: bad bootstrap pubkey for %s: %v\n", bp.pubsubAddr, err)
			continue
		}
		peerRegistry.OnConnect(peerID, bp.pubsubAddr, time.Now())
		go pingLoop(selfPeerID, peerID, bp.handshakeAddr, peerRegistry, cfg.ReconnectInterval(), cfg.HandshakeTimeout(), pingStop)
	}

	cat := catalog.New(builtinVerificationPrompts())
	model := verifiermodel.NewDeterministicModel(cfg.FuzzyTopK, nil, []string{"</s>", "done", "finished"})

	fingerprint := fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), rand.Int63())
	driver := auction.New(fingerprint, xport, ib, signer, cat, metrics, cfg.VerificationInjectionRate, time.Now().UnixNano())

	job := facade.Job{
		PromptMessages: []facade.Message{{Role: "user", Text: opts.prompt}},
		MaxTokens:      opts.maxTokens,
	}
	f := facade.New(job, 256)

	loopCfg := specloop.Config{
		TAuction:      cfg.AuctionInterval(),
		TCollect:      cfg.AuctionCollect(),
		TCooldown:     cfg.Cooldown(),
		TRequest:      cfg.RequestWallBudget(),
		NStall:        cfg.StallRoundsBeforeCooldown,
		ContextWindow: cfg.DraftContextWindowTokens,
	}
	loop := specloop.New(model, driver, cat, ledger, metrics, f, selfPeerID, loopCfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		f.Cancel()
	}()

	go loop.Run(runCtx)

	for tok := range f.Tokens() {
		fmt.Print(tok, " ")
	}
	fmt.Println()

	result := <-f.Done()
	fmt.Fprintf(os.Stderr, "coordinator: terminal=%s\n", result.Reason)

	cancelRun()
	if closeErr := node.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "coordinator: shutdown: %v\n", closeErr)
	}
	return result.Err
}

// bootstrapPeer is one entry of the persistent bootstrap list (spec
// §4.11): a pub/sub address to connect to, plus the optional handshake
// address and public key needed to track the peer in the registry.
type bootstrapPeer struct {
	pubsubAddr    string
	handshakeAddr string
	pubkeyHex     string
}

// parseBootstrapPeer parses "pubsubAddr[@handshakeAddr[@pubkeyHex]]".
func parseBootstrapPeer(raw string) bootstrapPeer {
	parts := strings.Split(raw, "@")
	bp := bootstrapPeer{pubsubAddr: parts[0]}
	if len(parts) > 1 {
		bp.handshakeAddr = parts[1]
	}
	if len(parts) > 2 {
		bp.pubkeyHex = parts[2]
	}
	return bp
}

// pingLoop handshake-pings a bootstrap peer every interval, recording the
// result in the registry (spec §4.11: reconnection/handshake retried for
// peers in the persistent bootstrap list that are currently absent).
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

// builtinVerificationPrompts is the fixed catalog compiled into both
// the coordinator and drafter binaries (spec §4.3: identical build-time
// set on both sides).
func builtinVerificationPrompts() []catalog.Entry {
	return []catalog.Entry{
		{Prompt: "what is 2+2?", Expected: "4", Mode: catalog.Numeric},
		{Prompt: "what is the capital of france?", Expected: "paris", Mode: catalog.Contains},
		{Prompt: "say the word banana", Expected: "banana", Mode: catalog.Exact},
	}
}
