// Package jsonrpc implements collector.Collector over a JSON-RPC
// subscription, directly grounded on
// streams/jsonrpc/client/client.go's Client: rpc.DialContext with
// exponential-backoff reconnection, an rpc.Client.Subscribe loop, and a
// dedicated fatal-error channel. Decoding the subscription payload into a
// snapshot.Update is supplied by the caller (Config.Decoder) since the wire
// format of the upstream indexer is explicitly out of scope.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/veblen-group/kuma-core/collector"
	"github.com/veblen-group/kuma-core/pairstream"
	"github.com/veblen-group/kuma-core/snapshot"
	"github.com/veblen-group/kuma-core/token"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	defaultNamespace = "kuma"
	defaultMethod    = "subscribeBlockUpdates"
)

// Logger is the narrow structured-logging contract shared across kuma-core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// UpdateDecoder turns one subscription payload into a snapshot.Update. The
// core never interprets the wire format itself.
type UpdateDecoder func(data json.RawMessage) (snapshot.Update, error)

// Config configures a Collector.
type Config struct {
	URL                   string
	Logger                Logger
	Decoder               UpdateDecoder
	SubscriptionNamespace string // defaults to "kuma"
	SubscriptionMethod    string // defaults to "subscribeBlockUpdates"

	// FailFastOnInvariantViolation controls the third argument to
	// BlockSnapshot.Evolve: true panics on a SnapshotInvariantViolation,
	// false logs and skips the offending pool. Production collectors
	// should leave this false; it exists mainly so tests can assert the
	// strict behavior.
	FailFastOnInvariantViolation bool
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("jsonrpc: URL is required")
	}
	if c.Logger == nil {
		return errors.New("jsonrpc: Logger is required")
	}
	if c.Decoder == nil {
		return errors.New("jsonrpc: Decoder is required")
	}
	if c.SubscriptionNamespace == "" {
		c.SubscriptionNamespace = defaultNamespace
	}
	if c.SubscriptionMethod == "" {
		c.SubscriptionMethod = defaultMethod
	}
	return nil
}

// Collector is a collector.Collector backed by a JSON-RPC subscription.
type Collector struct {
	pub    *pairstream.Publisher
	logger Logger
	errCh  chan error
	cancel context.CancelFunc
	wg     sync.WaitGroup
	prev   atomic.Pointer[snapshot.BlockSnapshot]
}

var _ collector.Collector = (*Collector)(nil)

// Dial validates cfg, starts the ingestion loop bound to ctx, and returns
// immediately.
func Dial(ctx context.Context, cfg Config) (*Collector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	childCtx, cancel := context.WithCancel(ctx)
	c := &Collector{
		pub:    pairstream.NewPublisher(),
		logger: cfg.Logger,
		errCh:  make(chan error, 1),
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.run(childCtx, cfg)
	return c, nil
}

// Err returns a channel that is closed when the ingestion loop exits. The
// loop retries every dial and subscription failure, so no error is ever
// sent on it.
func (c *Collector) Err() <-chan error {
	return c.errCh
}

func (c *Collector) run(ctx context.Context, cfg Config) {
	defer c.wg.Done()
	defer close(c.errCh)

	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("jsonrpc: context canceled, shutting down")
			return
		}

		c.logger.Info("jsonrpc: connecting", "url", cfg.URL)
		rpcClient, err := rpc.DialContext(ctx, cfg.URL)
		if err != nil {
			c.logger.Error("jsonrpc: dial failed, retrying", "error", err, "delay", reconnectDelay)
			time.Sleep(reconnectDelay)
			reconnectDelay = minDuration(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("jsonrpc: connected")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient, cfg)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("jsonrpc: context canceled, shutting down")
				return
			}
			c.logger.Error("jsonrpc: subscription failed, reconnecting", "error", err, "delay", reconnectDelay)
			time.Sleep(reconnectDelay)
			reconnectDelay = minDuration(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (c *Collector) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client, cfg Config) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, cfg.SubscriptionNamespace, rawCh, cfg.SubscriptionMethod)
	if err != nil {
		return fmt.Errorf("jsonrpc: subscribe failed: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("jsonrpc: subscribed, waiting for updates")
	for {
		select {
		case raw := <-rawCh:
			c.processUpdate(raw, cfg)
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Collector) processUpdate(raw json.RawMessage, cfg Config) {
	update, err := cfg.Decoder(raw)
	if err != nil {
		c.logger.Error("jsonrpc: failed to decode update, skipping", "error", err)
		return
	}

	prev := c.prev.Load()
	var next *snapshot.BlockSnapshot
	if prev == nil {
		next, err = snapshot.New(update)
	} else {
		next, err = prev.Evolve(update, c.logger, cfg.FailFastOnInvariantViolation)
	}
	if err != nil {
		c.logger.Error("jsonrpc: failed to apply update, skipping", "error", err, "height", update.Height)
		return
	}

	c.prev.Store(next)
	c.pub.Publish(next)
}

// Snapshots implements collector.Collector.
func (c *Collector) Snapshots() *pairstream.Publisher {
	return c.pub
}

// PairStream implements collector.Collector.
func (c *Collector) PairStream(pair token.Pair) (*pairstream.Stream, error) {
	return pairstream.NewStream(c.pub, pair), nil
}

// Shutdown implements collector.Collector: cancels the ingestion loop and
// waits for it to exit before closing the publisher.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.pub.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
