package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/rs/zerolog"
)

// DialFunc opens a byte-stream connection to a node
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober sends a four-letter diagnostic command to a node and parses the reply
type Prober struct {
	config Config
	dial   DialFunc
	logger zerolog.Logger
}

// NewProber creates a new diagnostic prober
func NewProber(cfg Config) (*Prober, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialer := &net.Dialer{}
	return &Prober{
		config: cfg,
		dial:   dialer.DialContext,
		logger: log.WithComponent("prober"),
	}, nil
}

// WithDialer replaces the connection dialer
func (p *Prober) WithDialer(dial DialFunc) *Prober {
	p.dial = dial
	return p
}

// Config returns the probe configuration
func (p *Prober) Config() Config {
	return p.config
}

// Probe queries one node, retrying connection and timeout failures up to the
// configured retry count with a fixed delay between attempts. After the last
// attempt it returns an *UnreachableError carrying the final cause.
func (p *Prober) Probe(ctx context.Context, endpoint string) (types.Metrics, error) {
	attempts := p.config.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, p.config.RetryDelay); err != nil {
				return nil, &UnreachableError{Endpoint: endpoint, Attempts: attempt - 1, Err: err}
			}
		}

		output, err := p.send(ctx, endpoint)
		if err == nil {
			return ParseMntr(output), nil
		}
		lastErr = err

		p.logger.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Err(err).
			Msg("Probe attempt failed")
	}

	return nil, &UnreachableError{Endpoint: endpoint, Attempts: attempts, Err: lastErr}
}

// send performs one attempt: write the command, half-close, read until the
// peer closes. A read timeout ends the response when some bytes arrived and
// fails the attempt otherwise.
func (p *Prober) send(ctx context.Context, endpoint string) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", endpoint)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline on %s: %w", endpoint, err)
	}

	if _, err := io.WriteString(conn, p.config.Command+"\n"); err != nil {
		return "", fmt.Errorf("send %q to %s: %w", p.config.Command, endpoint, err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		var netErr net.Error
		if !(errors.As(err, &netErr) && netErr.Timeout() && buf.Len() > 0) {
			return "", fmt.Errorf("read from %s: %w", endpoint, err)
		}
	}

	return strings.ToValidUTF8(buf.String(), ""), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
