// Package vlc drives a local VLC through its telnet interface
// (vlc --intf telnet).
package vlc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAddress  = "localhost:4212"
	DefaultPassword = "admin"

	prompt = "> "

	// telnet negotiation bytes
	iac      = 0xFF
	optFirst = 0xFB // WILL
	optLast  = 0xFE // DONT
)

var errWrongPassword = errors.New("vlc rejected the telnet password")

type Options struct {
	Address  string
	Password string
	// RetryDelay is the pause between a dropped call and its single retry.
	RetryDelay time.Duration
}

// Client is one telnet connection to VLC. Calls are serialised; a call that
// fails on I/O reconnects once and is retried once.
type Client struct {
	opts Options

	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

var _ core.Player = (*Client)(nil)

// Connect dials VLC and logs in.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	c := &Client{opts: opts}
	if err := c.dial(ctx); err != nil {
		return nil, fmt.Errorf("%w: vlc at %s: %v", domain.ErrConnection, opts.Address, err)
	}
	log.Info().Str("module", "adapters.vlc").Str("addr", opts.Address).Msg("connected to vlc")
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drop()
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.Command(ctx, "play")
	return err
}

// Pause only pauses a playing VLC; the telnet "pause" command toggles. The
// playing check and the toggle are retried together, so a retry after a
// dropped reply sees the toggle that already happened.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.retry(ctx, "pause", func() (string, error) {
		state, err := c.roundTrip(ctx, "is_playing")
		if err != nil {
			return "", err
		}
		if n, _ := (core.Value{Raw: state}).Int(); n == 0 {
			return "", nil
		}
		return c.roundTrip(ctx, "pause")
	})
	return err
}

func (c *Client) Seek(ctx context.Context, position float64) error {
	if position < 0 {
		position = 0
	}
	_, err := c.Command(ctx, "seek "+strconv.FormatFloat(position, 'f', 0, 64))
	return err
}

func (c *Client) AddFile(ctx context.Context, path string) error {
	_, err := c.Command(ctx, "add "+path)
	return err
}

func (c *Client) QueryPosition(ctx context.Context) (float64, error) {
	return c.queryNumber(ctx, "get_time")
}

func (c *Client) QueryLength(ctx context.Context) (float64, error) {
	return c.queryNumber(ctx, "get_length")
}

func (c *Client) QueryPlaying(ctx context.Context) (bool, error) {
	v, err := c.QueryProperty(ctx, "is_playing")
	if err != nil {
		return false, err
	}
	n, _ := v.Int()
	return n != 0, nil
}

func (c *Client) QueryProperty(ctx context.Context, name string) (core.Value, error) {
	out, err := c.Command(ctx, name)
	if err != nil {
		return core.Value{}, err
	}
	return core.Value{Raw: out}, nil
}

// queryNumber treats an empty answer (nothing loaded) as zero.
func (c *Client) queryNumber(ctx context.Context, name string) (float64, error) {
	v, err := c.QueryProperty(ctx, name)
	if err != nil {
		return 0, err
	}
	if v.Raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: unexpected answer %q", name, v.Raw)
	}
	return f, nil
}

// Command sends one telnet command and returns VLC's answer without the
// trailing prompt.
func (c *Client) Command(ctx context.Context, cmd string) (string, error) {
	return c.retry(ctx, cmd, func() (string, error) {
		return c.roundTrip(ctx, cmd)
	})
}

// retry runs exchange on a live connection. An I/O failure drops the
// connection; the next try reconnects and runs the whole exchange again.
func (c *Client) retry(ctx context.Context, name string, exchange func() (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempt := 0
	op := func() (string, error) {
		attempt++
		if c.conn == nil {
			if err := c.dial(ctx); err != nil {
				if errors.Is(err, errWrongPassword) {
					return "", backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err))
				}
				return "", fmt.Errorf("%w: reconnect: %v", domain.ErrAdapterUnavailable, err)
			}
			log.Info().Str("module", "adapters.vlc").Int("attempt", attempt).Msg("reconnected to vlc")
		}
		out, err := exchange()
		if err != nil {
			_ = c.drop()
			log.Warn().Err(err).Str("module", "adapters.vlc").Str("cmd", name).Int("attempt", attempt).Msg("vlc call failed")
			return "", fmt.Errorf("%w: %s: %v", domain.ErrAdapterUnavailable, name, err)
		}
		return out, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.RetryDelay)),
		backoff.WithMaxTries(2),
	)
}

func (c *Client) dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return err
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)

	if err := c.login(ctx); err != nil {
		_ = c.drop()
		return err
	}
	return nil
}

// login answers the password prompt if VLC asks for one and waits for the
// command prompt.
func (c *Client) login(ctx context.Context) error {
	defer c.bindContext(ctx)()

	greeting, err := c.readUntil("Password:", prompt)
	if err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if !strings.HasSuffix(greeting, "Password:") {
		return nil
	}
	if _, err := c.conn.Write([]byte(c.opts.Password + "\n")); err != nil {
		return fmt.Errorf("send password: %w", err)
	}
	reply, err := c.readUntil("Password:", prompt)
	if err != nil {
		return fmt.Errorf("read login reply: %w", err)
	}
	if strings.HasSuffix(reply, "Password:") {
		return errWrongPassword
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cmd string) (string, error) {
	defer c.bindContext(ctx)()

	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}
	out, err := c.readUntil(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSuffix(out, prompt)), nil
}

// bindContext makes a cancelled ctx unblock pending reads and writes.
func (c *Client) bindContext(ctx context.Context) func() {
	conn := c.conn
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	return func() { stop() }
}

// readUntil reads until the text seen so far ends with one of the markers,
// dropping telnet negotiation sequences.
func (c *Client) readUntil(markers ...string) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := c.rd.ReadByte()
		if err != nil {
			return buf.String(), err
		}
		if b == iac {
			op, err := c.rd.ReadByte()
			if err != nil {
				return buf.String(), err
			}
			if op >= optFirst && op <= optLast {
				if _, err := c.rd.ReadByte(); err != nil {
					return buf.String(), err
				}
			}
			continue
		}
		if b == '\r' {
			continue
		}
		buf.WriteByte(b)
		for _, m := range markers {
			if bytes.HasSuffix(buf.Bytes(), []byte(m)) {
				return buf.String(), nil
			}
		}
	}
}

func (c *Client) drop() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	return err
}
