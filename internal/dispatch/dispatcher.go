package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/lumenlabs/lumen-core/internal/crypt"
	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/registry"
	"github.com/lumenlabs/lumen-core/internal/transport"
)

// Strategy selects which transports a dispatch call may use. It is fixed
// once per call and applies uniformly to every target device.
type Strategy string

const (
	// StrategyLocalOnly attempts only the local path.
	StrategyLocalOnly Strategy = "local"

	// StrategyCloudOnly attempts only the relay path.
	StrategyCloudOnly Strategy = "cloud"

	// StrategyTryLocalThenCloud attempts the local path first and falls
	// through to the relay when the device is locally unreachable or
	// times out. The default.
	StrategyTryLocalThenCloud Strategy = "try-local-then-cloud"
)

// ParseStrategy maps a configuration string onto a Strategy. The empty
// string selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLocalOnly, StrategyCloudOnly, StrategyTryLocalThenCloud:
		return Strategy(s), nil
	case "":
		return StrategyTryLocalThenCloud, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Dispatch defaults.
const (
	// DefaultAttempts is the retry budget per transport per device.
	DefaultAttempts = 3

	// DefaultBackoff is the fixed pause between same-transport retries.
	DefaultBackoff = 200 * time.Millisecond

	// DefaultAttemptTimeout bounds one open-send-receive attempt.
	DefaultAttemptTimeout = 2 * time.Second

	// DefaultMaxInFlight bounds concurrent sessions across all devices.
	DefaultMaxInFlight = 16

	// DefaultFreshness is how old local reachability may be before a
	// dispatch triggers a discovery refresh.
	DefaultFreshness = time.Minute
)

// Config tunes dispatch behaviour. The zero value selects all defaults.
type Config struct {
	// Strategy selects the transport chain. Empty means
	// StrategyTryLocalThenCloud.
	Strategy Strategy

	// Attempts is the retry budget per transport per device.
	Attempts int

	// Backoff is the fixed pause between same-transport retries.
	Backoff time.Duration

	// AttemptTimeout bounds a single attempt.
	AttemptTimeout time.Duration

	// GlobalTimeout bounds the whole dispatch call. Zero means no global
	// deadline beyond the caller's context.
	GlobalTimeout time.Duration

	// MaxInFlight bounds concurrent sessions.
	MaxInFlight int64

	// Freshness is the local reachability age that triggers a discovery
	// refresh before dispatching.
	Freshness time.Duration

	// KeyOverride, when set, replaces every device's AES key for this
	// dispatcher. Must be a valid 16-byte key; an invalid override aborts
	// the whole call before any I/O.
	KeyOverride []byte
}

func (c *Config) setDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.Freshness <= 0 {
		c.Freshness = DefaultFreshness
	}
}

// Discoverer refreshes the registry's local reachability data. Satisfied
// by discovery.Prober.
type Discoverer interface {
	Run(ctx context.Context) ([]device.Identity, error)
}

// Logger defines the logging interface used by the Dispatcher.
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

// Options configures a Dispatcher.
type Options struct {
	// Registry resolves device records and keys. Required.
	Registry *registry.Registry

	// Local opens local sessions. Required unless Strategy is cloud-only.
	Local transport.Opener

	// Cloud opens relay sessions. Required unless Strategy is local-only.
	Cloud transport.Opener

	// Discoverer, when set, lets the dispatcher refresh reachability for
	// targets that are absent or stale before attempting them.
	Discoverer Discoverer

	// Config tunes retry, timeout and concurrency behaviour.
	Config Config

	// Logger receives dispatch events. Defaults to a no-op logger.
	Logger Logger

	// Observers receive each terminal result.
	Observers []Observer
}

// Dispatcher drives commands to a set of devices over the configured
// transports, one parallel worker per device, and aggregates per-device
// outcomes.
type Dispatcher struct {
	registry   *registry.Registry
	local      transport.Opener
	cloud      transport.Opener
	discoverer Discoverer
	cfg        Config
	logger     Logger
	observers  []Observer
	sem        *semaphore.Weighted
}

// New creates a dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Registry == nil {
		return nil, ErrNilRegistry
	}

	cfg := opts.Config
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy
	cfg.setDefaults()

	switch strategy {
	case StrategyLocalOnly:
		if opts.Local == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoTransport, strategy)
		}
	case StrategyCloudOnly:
		if opts.Cloud == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoTransport, strategy)
		}
	case StrategyTryLocalThenCloud:
		if opts.Local == nil || opts.Cloud == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoTransport, strategy)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Dispatcher{
		registry:   opts.Registry,
		local:      opts.Local,
		cloud:      opts.Cloud,
		discoverer: opts.Discoverer,
		cfg:        cfg,
		logger:     logger,
		observers:  opts.Observers,
		sem:        semaphore.NewWeighted(cfg.MaxInFlight),
	}, nil
}

// Dispatch sends one command to every selected device and returns one
// Result per device. Selectors are normalised and deduplicated first.
//
// The call itself fails only for preconditions: no targets, or an invalid
// key override (checked before any I/O). Per-device failures never abort
// sibling devices; the returned Results always covers every target.
func (d *Dispatcher) Dispatch(ctx context.Context, selectors []string, cmd device.Command) (Results, error) {
	targets := normalizeTargets(selectors)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	if d.cfg.KeyOverride != nil {
		if err := crypt.ValidateKey(d.cfg.KeyOverride); err != nil {
			return nil, err
		}
	}

	if d.cfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.GlobalTimeout)
		defer cancel()
	}

	d.maybeDiscover(ctx, targets)

	d.logger.Info("dispatching command",
		"type", cmd.Type,
		"targets", len(targets),
		"strategy", d.cfg.Strategy,
	)

	results := make(Results, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range targets {
		wg.Add(1)
		go func(id device.UnitID) {
			defer wg.Done()

			res := d.dispatchDevice(ctx, id, cmd)
			for _, obs := range d.observers {
				obs.ObserveResult(ctx, res)
			}

			mu.Lock()
			results[id] = res
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	d.logger.Info("dispatch complete",
		"succeeded", results.Succeeded(),
		"failed", results.Failed(),
	)
	return results, nil
}

// dispatchDevice runs one device's state machine to a terminal outcome.
// Attempts for one device are strictly sequential; no two sessions are
// ever open concurrently for the same device.
func (d *Dispatcher) dispatchDevice(ctx context.Context, id device.UnitID, cmd device.Command) Result {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return d.failed(ctx, id, "", err, 0, time.Now())
	}
	defer d.sem.Release(1)

	start := time.Now()
	rec := d.record(id)

	key, err := d.resolveKey(rec)
	if err != nil {
		return d.failed(ctx, id, "", err, 0, start)
	}

	chain := d.chain()
	attempts := 0
	var lastErr error
	var lastKind transport.Kind

	for i, opener := range chain {
		final := i == len(chain)-1

		resp, n, err := d.attempt(ctx, opener, rec, key, cmd, final)
		attempts += n
		lastKind = opener.Kind()

		if err == nil {
			d.refresh(ctx, opener.Kind(), rec)
			d.logger.Debug("device succeeded",
				"unit_id", id,
				"transport", opener.Kind(),
				"attempts", attempts,
			)
			return Result{
				UnitID:    id,
				State:     StateSucceeded,
				Transport: opener.Kind(),
				Response:  resp,
				Attempts:  attempts,
				Latency:   time.Since(start),
			}
		}

		lastErr = err
		if KindOf(err).terminal() {
			break
		}
		// Otherwise fall through to the next transport, if any.
	}

	return d.failed(ctx, id, lastKind, lastErr, attempts, start)
}

// attempt runs up to the configured retry budget on one transport.
// Terminal kinds stop immediately; under try-local-then-cloud a non-final
// transport also stops on unreachable/timeout so the chain can move on.
func (d *Dispatcher) attempt(ctx context.Context, opener transport.Opener, rec registry.Record, key []byte, cmd device.Command, final bool) (*device.Response, int, error) {
	attempts := 0

	op := func() (*device.Response, error) {
		attempts++
		d.logger.Debug("attempting device",
			"unit_id", rec.Identity.UnitID,
			"transport", opener.Kind(),
			"attempt", attempts,
		)

		resp, err := d.once(ctx, opener, rec, key, cmd)
		if err == nil {
			return resp, nil
		}

		kind := KindOf(err)
		switch {
		case kind.terminal():
			return nil, backoff.Permanent(err)
		case !final && kind.fallsThrough():
			return nil, backoff.Permanent(err)
		case !kind.retryable():
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(d.cfg.Backoff)),
		backoff.WithMaxTries(uint(d.cfg.Attempts)),
	)
	return resp, attempts, err
}

// once performs a single open-send-close exchange bounded by the
// per-attempt timeout.
func (d *Dispatcher) once(ctx context.Context, opener transport.Opener, rec registry.Record, key []byte, cmd device.Command) (*device.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	sess, err := opener.Open(attemptCtx, rec, key)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return sess.Send(attemptCtx, cmd)
}

// record resolves a target to its registry record, or a bare record for
// unknown devices; the relay may still know them.
func (d *Dispatcher) record(id device.UnitID) registry.Record {
	rec, err := d.registry.Lookup(id)
	if err != nil {
		return registry.Record{
			Identity: device.Identity{UnitID: id, Class: device.ClassUnknown},
		}
	}
	return rec
}

// resolveKey picks the AES key for one device. Precedence: explicit
// override, per-device registry key, well-known development key.
func (d *Dispatcher) resolveKey(rec registry.Record) ([]byte, error) {
	key := d.cfg.KeyOverride
	if key == nil {
		key = rec.Key
	}
	if key == nil {
		key = crypt.DevKey()
	}
	if err := crypt.ValidateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// chain returns the transport order for the configured strategy.
func (d *Dispatcher) chain() []transport.Opener {
	switch d.cfg.Strategy {
	case StrategyLocalOnly:
		return []transport.Opener{d.local}
	case StrategyCloudOnly:
		return []transport.Opener{d.cloud}
	default:
		return []transport.Opener{d.local, d.cloud}
	}
}

// refresh records a successful exchange back into the registry.
func (d *Dispatcher) refresh(ctx context.Context, kind transport.Kind, rec registry.Record) {
	info := registry.Reachability{SeenAt: time.Now()}
	if kind == transport.KindLocal {
		info.LocalAddr = rec.LocalAddr
	} else {
		info.CloudKnown = true
	}
	if err := d.registry.Upsert(ctx, rec.Identity, info); err != nil {
		d.logger.Warn("recording dispatch outcome", "unit_id", rec.Identity.UnitID, "error", err)
	}
}

// maybeDiscover runs one discovery round when a local-capable dispatch
// targets a device that is absent from the registry or stale.
func (d *Dispatcher) maybeDiscover(ctx context.Context, targets []device.UnitID) {
	if d.discoverer == nil || d.cfg.Strategy == StrategyCloudOnly {
		return
	}

	needed := false
	for _, id := range targets {
		rec, err := d.registry.Lookup(id)
		if err != nil || rec.LocalAddr == "" || time.Since(rec.LastSeen) > d.cfg.Freshness {
			needed = true
			break
		}
	}
	if !needed {
		return
	}

	found, err := d.discoverer.Run(ctx)
	if err != nil {
		d.logger.Warn("discovery refresh failed", "error", err)
		return
	}
	d.logger.Debug("discovery refresh complete", "found", len(found))
}

// failed builds a terminal failure result. A live context error takes
// precedence over the transport error so global-deadline expiry is
// reported as such.
func (d *Dispatcher) failed(ctx context.Context, id device.UnitID, tk transport.Kind, err error, attempts int, start time.Time) Result {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if err != nil && !KindOf(err).terminal() {
			err = fmt.Errorf("%w (last attempt: %v)", ctxErr, err)
		} else if err == nil {
			err = ctxErr
		}
	}

	kind := KindOf(err)
	d.logger.Warn("device failed",
		"unit_id", id,
		"transport", tk,
		"kind", kind,
		"attempts", attempts,
		"error", err,
	)
	return Result{
		UnitID:    id,
		State:     StateFailed,
		Transport: tk,
		Err:       err,
		Kind:      kind,
		Attempts:  attempts,
		Latency:   time.Since(start),
	}
}

// normalizeTargets canonicalises selectors and removes duplicates,
// preserving first-seen order.
func normalizeTargets(selectors []string) []device.UnitID {
	seen := make(map[device.UnitID]struct{}, len(selectors))
	out := make([]device.UnitID, 0, len(selectors))
	for _, s := range selectors {
		id := device.NormalizeUnitID(s)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
