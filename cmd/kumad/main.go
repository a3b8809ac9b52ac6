// Command kumad is the process entrypoint for the cross-chain arbitrage
// signal service: it loads configuration, dials a jsonrpc collector for
// each chain, and wires the strategy scheduler between them, following
// cmd/client/main.go's log handler / registry / signal.NotifyContext /
// config-then-dial shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veblen-group/kuma-core/chainmeta"
	"github.com/veblen-group/kuma-core/collector/jsonrpc"
	"github.com/veblen-group/kuma-core/config"
	"github.com/veblen-group/kuma-core/metrics"
	"github.com/veblen-group/kuma-core/search"
	"github.com/veblen-group/kuma-core/signalbus"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/strategy"
	"github.com/veblen-group/kuma-core/token"
)

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("failed to load configuration", "error", err)
		close()
		return
	}

	prometheusRegistry := prometheus.DefaultRegisterer
	m, err := metrics.New(prometheusRegistry)
	if err != nil {
		rootLogger.Error("failed to register metrics", "error", err)
		close()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenA, tokenB, pair, err := resolveTokenPair(cfg)
	if err != nil {
		rootLogger.Error("failed to resolve configured token pair", "error", err)
		close()
		return
	}

	slowChain := chainmeta.New(chainmeta.ChainName(cfg.SlowChain.Name), cfg.SlowChain.BlockTimeHint)
	fastChain := chainmeta.New(chainmeta.ChainName(cfg.FastChain.Name), cfg.FastChain.BlockTimeHint)

	slowCollector, err := jsonrpc.Dial(ctx, jsonrpc.Config{
		URL:     cfg.SlowStateStreamURL,
		Logger:  rootLogger.With("component", "jsonrpc-collector", "chain", cfg.SlowChain.Name),
		Decoder: unsupportedWireDecoder,
	})
	if err != nil {
		rootLogger.Error("failed to dial slow chain collector", "error", err)
		close()
		return
	}
	defer slowCollector.Shutdown(context.Background())

	fastCollector, err := jsonrpc.Dial(ctx, jsonrpc.Config{
		URL:     cfg.FastStateStreamURL,
		Logger:  rootLogger.With("component", "jsonrpc-collector", "chain", cfg.FastChain.Name),
		Decoder: unsupportedWireDecoder,
	})
	if err != nil {
		rootLogger.Error("failed to dial fast chain collector", "error", err)
		close()
		return
	}
	defer fastCollector.Shutdown(context.Background())

	slowStream, err := slowCollector.PairStream(pair)
	if err != nil {
		rootLogger.Error("failed to open slow pair stream", "error", err)
		close()
		return
	}
	fastStream, err := fastCollector.PairStream(pair)
	if err != nil {
		rootLogger.Error("failed to open fast pair stream", "error", err)
		close()
		return
	}

	bus := signalbus.NewBus(cfg.SignalBusCapacity)

	searchParams := search.Params{
		MaxSlippageBps:            cfg.MaxSlippageBps,
		CongestionRiskDiscountBps: cfg.CongestionRiskDiscountBps,
		FastInventoryA:            cfg.FastChain.InventoryFor(tokenA.Symbol),
		FastInventoryB:            cfg.FastChain.InventoryFor(tokenB.Symbol),
	}

	sched := strategy.Dial(
		ctx,
		slowStream, fastStream,
		slowChain, fastChain,
		pair, pair,
		cfg.BinarySearchSteps,
		cfg.SlowChain.InventoryFor(tokenA.Symbol), cfg.SlowChain.InventoryFor(tokenB.Symbol),
		searchParams,
		bus,
		strategy.WithLogger(rootLogger.With("component", "strategy")),
		strategy.WithMetrics(m.PrecomputeDuration, m.SearchDuration, m.PrecomputePoolFails, m.SearchOutcomes, m.SignalsEmitted),
	)

	sub := bus.Subscribe()
	for {
		select {
		case sig, ok := <-sub:
			if !ok {
				return
			}
			rootLogger.Info("signal emitted", "signal", sig.String())
		case err, ok := <-sched.Err():
			if ok {
				rootLogger.Error("fatal strategy error", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}

// resolveTokenPair turns the configured symbols into a token.Pair. Address
// resolution (symbol -> on-chain address) is the collector's concern, which
// is why this placeholder derives a deterministic stand-in address from the
// symbol; a real deployment wires this from the same chain registry the
// collector uses to decode pool state.
func resolveTokenPair(cfg *config.Config) (tokenA, tokenB token.Token, pair token.Pair, err error) {
	tokenA, err = token.New(cfg.TokenA, []byte(cfg.TokenA), 18)
	if err != nil {
		return token.Token{}, token.Token{}, token.Pair{}, fmt.Errorf("resolve token_a: %w", err)
	}
	tokenB, err = token.New(cfg.TokenB, []byte(cfg.TokenB), 18)
	if err != nil {
		return token.Token{}, token.Token{}, token.Pair{}, fmt.Errorf("resolve token_b: %w", err)
	}
	pair, err = token.NewPair(tokenA, tokenB)
	if err != nil {
		return token.Token{}, token.Token{}, token.Pair{}, fmt.Errorf("build token pair: %w", err)
	}
	return tokenA, tokenB, pair, nil
}

// unsupportedWireDecoder is wired in place of a real chain-specific pool
// decoder, which depends on the concrete indexer wire format and is
// explicitly out of scope. A real deployment supplies a decoder that
// unmarshals the upstream payload into poolstate.State values, the way
// ethstateops.NewStateOps does for the teacher's own protocol set.
func unsupportedWireDecoder(data json.RawMessage) (snapshot.Update, error) {
	var probe struct {
		Height uint64 `json:"height"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return snapshot.Update{}, fmt.Errorf("kumad: decode wire payload: %w", err)
	}
	return snapshot.Update{}, fmt.Errorf("kumad: no pool state decoder configured for height %d; wire a chain-specific decoder before deploying", probe.Height)
}
