package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/registry"
	"github.com/lumenlabs/lumen-core/internal/wire"
)

// defaultDialTimeout bounds the TCP connect to a device; devices answer on
// the local subnet so anything slower is effectively unreachable.
const defaultDialTimeout = 2 * time.Second

// headerLen is the fixed frame header size read before the remainder.
const headerLen = 4

// LocalOpener opens direct encrypted TCP sessions to devices on the
// local network.
type LocalOpener struct {
	// DialTimeout bounds the TCP connect. Defaults to defaultDialTimeout.
	DialTimeout time.Duration

	// Logger receives session events. Defaults to a no-op logger.
	Logger Logger
}

// Kind reports the local transport path.
func (o *LocalOpener) Kind() Kind { return KindLocal }

// Open connects to the device's last known local address.
//
// Returns ErrUnreachable before any I/O when the registry holds no local
// address for the device, and wraps dial failures in ErrUnreachable or
// ErrTimeout depending on their nature.
func (o *LocalOpener) Open(ctx context.Context, rec registry.Record, key []byte) (Session, error) {
	if rec.LocalAddr == "" {
		return nil, fmt.Errorf("%w: no local address for %s", ErrUnreachable, rec.Identity.UnitID)
	}

	timeout := o.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", rec.LocalAddr)
	if err != nil {
		return nil, classifyNetErr(err, "dialing "+rec.LocalAddr)
	}

	logger := o.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	logger.Debug("local session opened", "unit_id", rec.Identity.UnitID, "addr", rec.LocalAddr)

	return &localSession{
		conn:   conn,
		unitID: rec.Identity.UnitID,
		key:    key,
		logger: logger,
	}, nil
}

// localSession is one encrypted TCP exchange with one device.
type localSession struct {
	conn   net.Conn
	unitID device.UnitID
	key    []byte
	logger Logger
}

// Send encodes the command into a protocol frame, writes it, and reads
// exactly one response frame. The context deadline applies to the whole
// exchange.
func (s *localSession) Send(ctx context.Context, cmd device.Command) (*device.Response, error) {
	if cmd.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: created %s, ttl %s", ErrExpired, cmd.Created.Format(time.RFC3339), cmd.TTL)
	}

	body, err := cmd.Body()
	if err != nil {
		return nil, fmt.Errorf("%w: command body: %w", wire.ErrDecode, err)
	}

	frame, err := wire.EncodeFrame(s.key, cmd.Type, body)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting session deadline: %w", err)
		}
	}

	if _, err := s.conn.Write(frame); err != nil {
		return nil, classifyNetErr(err, "writing frame")
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return nil, classifyNetErr(err, "reading frame header")
	}

	total, err := wire.FrameSize(header)
	if err != nil {
		return nil, err
	}

	reply := make([]byte, total)
	copy(reply, header)
	if _, err := io.ReadFull(s.conn, reply[headerLen:]); err != nil {
		return nil, classifyNetErr(err, "reading frame body")
	}

	_, payload, err := wire.DecodeFrame(s.key, reply)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("local response decoded", "unit_id", s.unitID, "bytes", len(payload))
	return &device.Response{
		UnitID:   s.unitID,
		Payload:  payload,
		Received: time.Now(),
	}, nil
}

// Close releases the TCP connection.
func (s *localSession) Close() error {
	return s.conn.Close()
}

// classifyNetErr folds a network error into the transport taxonomy:
// deadline expiry becomes ErrTimeout, everything else ErrUnreachable.
func classifyNetErr(err error, op string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, op, err)
}
