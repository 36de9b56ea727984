// Package netprobe answers one question: does a TCP endpoint accept
// connections yet?
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrUnreachable is returned once MaxAttempts probes have failed.
var ErrUnreachable = errors.New("host unreachable")

// Options bound a reachability wait.
type Options struct {
	ConnectTimeout time.Duration // per attempt
	RetryInterval  time.Duration // pause between failed attempts
	MaxAttempts    int           // 0 = until the context ends
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	return o
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober checks TCP reachability by opening and immediately closing a
// connection. No data is exchanged.
type Prober struct {
	log  *zap.Logger
	opts Options
	dial dialFunc
}

func New(log *zap.Logger, opts Options) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	var d net.Dialer
	return &Prober{
		log:  log.Named("netprobe"),
		opts: opts.withDefaults(),
		dial: d.DialContext,
	}
}

// Probe makes a single connection attempt bounded by ConnectTimeout.
func (p *Prober) Probe(ctx context.Context, host string, port int) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// WaitUntilReachable blocks until host:port accepts a TCP connection.
// It returns ctx.Err() if the context ends first and ErrUnreachable if
// MaxAttempts is set and exhausted.
func (p *Prober) WaitUntilReachable(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log := p.log.With(zap.String("addr", addr))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.Probe(ctx, host, port)
		if err == nil {
			log.Info("reachable", zap.Int("attempt", attempt))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if p.opts.MaxAttempts > 0 && attempt >= p.opts.MaxAttempts {
			log.Warn("giving up", zap.Int("attempts", attempt), zap.Error(err))
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrUnreachable, addr, attempt, err)
		}
		log.Info("not reachable yet, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", p.opts.RetryInterval),
			zap.Error(err))

		t := time.NewTimer(p.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
