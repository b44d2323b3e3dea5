package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/registry"
)

// Protocol constants. Devices listen for probes on UDP port 2222 and
// accept command connections on TCP port 3333.
const (
	// ProbeSyn is the broadcast probe payload that asks every device on
	// the subnet to identify itself.
	ProbeSyn = "QCX-SYN"

	// ProbeDirectedSyn is the unicast probe payload used to re-verify a
	// single known address.
	ProbeDirectedSyn = "QCX-DSYN"

	// ProbeAck acknowledges a received identity reply so the device stops
	// repeating it.
	ProbeAck = "QCX-ACK"

	// BroadcastPort is the UDP port devices listen on for probes.
	BroadcastPort = 2222

	// DevicePort is the TCP port devices accept command connections on.
	DevicePort = 3333

	// DefaultWindow is how long a discovery round listens for replies.
	DefaultWindow = 2500 * time.Millisecond

	// maxDatagramSize bounds a single identity reply.
	maxDatagramSize = 4096
)

// identReply is the JSON datagram a device sends in response to a probe.
type identReply struct {
	Type  string `json:"type"`
	Ident struct {
		UnitID    string `json:"unit_id"`
		ProductID string `json:"product_id"`
	} `json:"ident"`
}

// Logger defines the logging interface used by the Prober.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Prober.
type Options struct {
	// Window bounds how long one Run listens for replies.
	// Defaults to DefaultWindow.
	Window time.Duration

	// BroadcastAddr is where the probe is sent.
	// Defaults to "255.255.255.255:2222".
	BroadcastAddr string

	// DevicePort is the TCP command port recorded for responding devices.
	// Defaults to DevicePort.
	DevicePort int

	// Logger receives discovery events. Defaults to a no-op logger.
	Logger Logger
}

// Prober broadcasts identity probes and feeds replies into the registry.
//
// A Prober is idempotent and restartable: every Run simply refreshes
// reachability data, and running it again after a failure is always safe.
type Prober struct {
	registry      *registry.Registry
	window        time.Duration
	broadcastAddr string
	devicePort    int
	logger        Logger
}

// New creates a prober that upserts replies into the given registry.
func New(reg *registry.Registry, opts Options) (*Prober, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.Window < 0 {
		return nil, ErrInvalidWindow
	}
	if opts.BroadcastAddr == "" {
		opts.BroadcastAddr = fmt.Sprintf("255.255.255.255:%d", BroadcastPort)
	}
	if opts.DevicePort == 0 {
		opts.DevicePort = DevicePort
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Prober{
		registry:      reg,
		window:        opts.Window,
		broadcastAddr: opts.BroadcastAddr,
		devicePort:    opts.DevicePort,
		logger:        opts.Logger,
	}, nil
}

// Run broadcasts one probe and collects identity replies until the window
// closes or ctx is cancelled. Every well-formed reply upserts the registry;
// malformed datagrams are dropped without aborting the window. Duplicate
// replies refresh the device's last-seen timestamp.
//
// Returns the identities observed during this run, deduplicated. Zero
// replies is not an error: the result is simply empty.
func (p *Prober) Run(ctx context.Context) ([]device.Identity, error) {
	target, err := net.ResolveUDPAddr("udp4", p.broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving broadcast address: %w", err)
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening discovery socket: %w", err)
	}
	defer pc.Close()

	// Close the socket on cancellation so the read loop unblocks.
	stop := context.AfterFunc(ctx, func() {
		_ = pc.Close()
	})
	defer stop()

	if _, err := pc.WriteTo([]byte(ProbeSyn), target); err != nil {
		return nil, fmt.Errorf("sending discovery probe: %w", err)
	}
	p.logger.Debug("discovery probe sent", "target", p.broadcastAddr, "window", p.window)

	deadline := time.Now().Add(p.window)
	if err := pc.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting discovery deadline: %w", err)
	}

	seen := make(map[device.UnitID]device.Identity)
	buf := make([]byte, maxDatagramSize)

	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return identities(seen), ctx.Err()
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				break // window closed
			}
			return identities(seen), fmt.Errorf("reading discovery reply: %w", err)
		}

		identity, ok := p.parseReply(buf[:n], from)
		if !ok {
			continue
		}

		addr := p.commandAddr(from)
		if err := p.registry.Upsert(ctx, identity, registry.Reachability{
			LocalAddr: addr,
			SeenAt:    time.Now(),
		}); err != nil {
			p.logger.Warn("recording discovered device", "unit_id", identity.UnitID, "error", err)
			continue
		}

		if _, dup := seen[identity.UnitID]; !dup {
			seen[identity.UnitID] = identity
			p.logger.Info("device discovered",
				"unit_id", identity.UnitID,
				"class", identity.Class,
				"addr", addr,
			)
		}

		// Best effort; the device repeats its reply if the ack is lost.
		_, _ = pc.WriteTo([]byte(ProbeAck), from)
	}

	p.logger.Debug("discovery window closed", "found", len(seen))
	return identities(seen), nil
}

// parseReply decodes one datagram into an identity. Probe echoes and
// malformed payloads are dropped.
func (p *Prober) parseReply(data []byte, from net.Addr) (device.Identity, bool) {
	payload := string(data)
	if payload == ProbeSyn || payload == ProbeDirectedSyn || payload == ProbeAck {
		return device.Identity{}, false
	}

	var reply identReply
	if err := json.Unmarshal(data, &reply); err != nil {
		p.logger.Debug("dropping malformed discovery reply", "from", from.String(), "error", err)
		return device.Identity{}, false
	}
	if reply.Type != "ident" || reply.Ident.UnitID == "" {
		p.logger.Debug("dropping non-ident discovery reply", "from", from.String(), "type", reply.Type)
		return device.Identity{}, false
	}

	return device.NewIdentity(reply.Ident.UnitID, reply.Ident.ProductID), true
}

// commandAddr maps a reply's source address to the device's TCP command
// address.
func (p *Prober) commandAddr(from net.Addr) string {
	host := from.String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.JoinHostPort(host, strconv.Itoa(p.devicePort))
}

func identities(seen map[device.UnitID]device.Identity) []device.Identity {
	out := make([]device.Identity, 0, len(seen))
	for _, id := range seen {
		out = append(out, id)
	}
	return out
}
