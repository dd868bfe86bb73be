package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// defaultTorStartupTimeout bounds bootstrapping when no timeout is given.
// Tor needs to fetch the network consensus and build circuits first, which
// usually takes one to three minutes.
const defaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor is a Tor daemon owned by one search run. Its SOCKS port is
// used as the run's only proxy, so --embedded-tor needs no proxy list.
// The zero value is a stopped daemon.
type EmbeddedTor struct {
	// process is the daemon; nil before a successful start and after Stop.
	process *tornago.TorProcess
}

// EmbeddedTorOption configures StartEmbeddedTor.
type EmbeddedTorOption func(*torOptions)

type torOptions struct {
	startupTimeout time.Duration
}

// WithStartupTimeout bounds how long StartEmbeddedTor waits for the daemon
// to bootstrap. Zero or less keeps the default of three minutes.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(o *torOptions) {
		if timeout > 0 {
			o.startupTimeout = timeout
		}
	}
}

func newTorOptions(opts ...EmbeddedTorOption) torOptions {
	o := torOptions{startupTimeout: defaultTorStartupTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StartEmbeddedTor launches a Tor daemon on OS assigned ports and returns
// once it has bootstrapped. If ctx is done first, StartEmbeddedTor returns
// ctx.Err() and the daemon is stopped as soon as its launch completes.
// The caller must Stop the returned daemon.
func StartEmbeddedTor(ctx context.Context, opts ...EmbeddedTorOption) (*EmbeddedTor, error) {
	o := newTorOptions(opts...)

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(o.startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid Tor launch config: %w", err)
	}

	type launch struct {
		process *tornago.TorProcess
		err     error
	}
	done := make(chan launch, 1)
	go func() {
		process, err := tornago.StartTorDaemon(launchCfg)
		done <- launch{process: process, err: err}
	}()

	select {
	case l := <-done:
		if l.err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor daemon: %w", l.err)
		}
		return &EmbeddedTor{process: l.process}, nil
	case <-ctx.Done():
		go func() {
			if l := <-done; l.process != nil {
				_ = l.process.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return nil, ctx.Err()
	}
}

// Running reports whether the daemon is up.
func (e *EmbeddedTor) Running() bool {
	return e != nil && e.process != nil
}

// ProxyURL returns the SOCKS port as a socks5h URL, so host names are
// resolved inside Tor rather than locally.
func (e *EmbeddedTor) ProxyURL() (string, error) {
	if !e.Running() {
		return "", ErrTorNotRunning
	}
	return SchemeSOCKS5H + "://" + e.process.SocksAddr(), nil
}

// SocksAddr returns the SOCKS listener as host:port, or "" when stopped.
func (e *EmbeddedTor) SocksAddr() string {
	if !e.Running() {
		return ""
	}
	return e.process.SocksAddr()
}

// ControlAddr returns the control port as host:port, or "" when stopped.
func (e *EmbeddedTor) ControlAddr() string {
	if !e.Running() {
		return ""
	}
	return e.process.ControlAddr()
}

// Stop terminates the daemon. Stopping a stopped daemon is a no-op.
func (e *EmbeddedTor) Stop() error {
	if !e.Running() {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}
