// lumenctl - smart lighting command dispatcher
//
// lumenctl drives encrypted commands to smart lighting devices over two
// transports: direct TCP on the local network and the vendor cloud relay.
// Devices are found by UDP broadcast discovery and cached in SQLite
// between runs.
//
// Usage:
//
//	lumenctl -discover                                 sweep the local network
//	lumenctl -list                                     show cached devices
//	lumenctl -type set -payload '{"power":"on"}' <unit-id>...
//	lumenctl -type ping <unit-id>...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/lumenlabs/lumen-core/internal/crypt"
	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/discovery"
	"github.com/lumenlabs/lumen-core/internal/dispatch"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/config"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/database"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/logging"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/mqtt"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/telemetry"
	"github.com/lumenlabs/lumen-core/internal/registry"
	"github.com/lumenlabs/lumen-core/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errDevicesFailed signals a clean run in which some devices did not
// reach a successful outcome. main maps it to a non-zero exit code
// without printing a redundant error.
var errDevicesFailed = errors.New("one or more devices failed")

// options holds parsed command line flags.
type options struct {
	configPath string
	discover   bool
	list       bool
	cmdType    string
	payload    string
	ttl        time.Duration
	strategy   string
	targets    []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := parseFlags()

	if err := run(ctx, opts); err != nil {
		if !errors.Is(err, errDevicesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// parseFlags reads the command line into an options struct.
func parseFlags() options {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "path to config.yaml (default: $LUMEN_CONFIG or configs/config.yaml)")
	flag.BoolVar(&opts.discover, "discover", false, "run a discovery sweep and print the devices found")
	flag.BoolVar(&opts.list, "list", false, "print the cached device registry")
	flag.StringVar(&opts.cmdType, "type", "get", "command type: get, set, ping or reboot")
	flag.StringVar(&opts.payload, "payload", "", "JSON command payload (for set)")
	flag.DurationVar(&opts.ttl, "ttl", 0, "command time to live, 0 disables expiry (e.g. 5s)")
	flag.StringVar(&opts.strategy, "strategy", "", "override dispatch strategy: local, cloud or try-local-then-cloud")
	flag.Parse()

	opts.targets = flag.Args()
	return opts
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command line flags
//
// Returns:
//   - error: nil on success; errDevicesFailed when some targets failed
func run(ctx context.Context, opts options) error {
	log := logging.Default()

	cfg, err := config.Load(resolveConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Debug("starting lumenctl", "version", version, "commit", commit)

	// Device registry, backed by the SQLite cache when enabled.
	var repo registry.Repository
	if cfg.Cache.Enabled {
		db, openErr := database.Open(database.Config{
			Path:        cfg.Cache.Path,
			BusyTimeout: cfg.Cache.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening device cache: %w", openErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("closing device cache", "error", closeErr)
			}
		}()

		repo, err = registry.NewSQLiteRepository(db.DB)
		if err != nil {
			return fmt.Errorf("preparing device cache: %w", err)
		}
	}

	reg := registry.New(repo)
	reg.SetLogger(log)
	if err := reg.LoadCache(ctx); err != nil {
		return err
	}

	// Per-device keys come from config only; they are never cached.
	for rawID, hexKey := range cfg.Keys.PerDevice {
		key, keyErr := crypt.ParseKey(hexKey)
		if keyErr != nil {
			return fmt.Errorf("keys.per_device[%s]: %w", rawID, keyErr)
		}
		if setErr := reg.SetKey(device.NormalizeUnitID(rawID), key); setErr != nil {
			return fmt.Errorf("keys.per_device[%s]: %w", rawID, setErr)
		}
	}

	prober, err := discovery.New(reg, discovery.Options{
		Window:        cfg.GetDiscoveryWindow(),
		BroadcastAddr: cfg.Discovery.BroadcastAddr,
		DevicePort:    cfg.Local.DevicePort,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("configuring discovery: %w", err)
	}

	switch {
	case opts.discover:
		return runDiscover(ctx, cfg, prober, log)
	case opts.list:
		return runList(reg)
	default:
		return runDispatch(ctx, cfg, reg, prober, opts, log)
	}
}

// runDiscover sweeps the local network once and prints the devices found.
func runDiscover(ctx context.Context, cfg *config.Config, prober *discovery.Prober, log *logging.Logger) error {
	found, err := prober.Run(ctx)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	if cfg.Telemetry.Enabled {
		client, connErr := telemetry.Connect(cfg.Telemetry)
		if connErr != nil {
			log.Warn("telemetry unavailable, sweep not recorded", "error", connErr)
		} else {
			client.WriteDiscoverySweep(len(found), cfg.GetDiscoveryWindow())
			if closeErr := client.Close(); closeErr != nil {
				log.Error("closing telemetry", "error", closeErr)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, id := range found {
		if err := enc.Encode(id); err != nil {
			return err
		}
	}
	return nil
}

// runList prints the cached registry, most recently seen first.
func runList(reg *registry.Registry) error {
	records := reg.All()
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastSeen.After(records[j].LastSeen)
	})

	enc := json.NewEncoder(os.Stdout)
	for _, rec := range records {
		line := map[string]any{
			"unit_id":     rec.Identity.UnitID,
			"product_id":  rec.Identity.ProductID,
			"class":       rec.Identity.Class,
			"local_addr":  rec.LocalAddr,
			"cloud_known": rec.CloudKnown,
		}
		if !rec.LastSeen.IsZero() {
			line["last_seen"] = rec.LastSeen.UTC().Format(time.RFC3339)
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

// runDispatch sends one command to the selected devices and prints one
// JSON result line per device.
func runDispatch(ctx context.Context, cfg *config.Config, reg *registry.Registry, prober *discovery.Prober, opts options, log *logging.Logger) error {
	if len(opts.targets) == 0 {
		return errors.New("no target devices given (pass unit ids as arguments, or use -discover)")
	}

	cmdType, err := parseCommandType(opts.cmdType)
	if err != nil {
		return err
	}

	var payload json.RawMessage
	if opts.payload != "" {
		if !json.Valid([]byte(opts.payload)) {
			return fmt.Errorf("payload is not valid JSON: %q", opts.payload)
		}
		payload = json.RawMessage(opts.payload)
	}

	cmd := device.NewCommand(cmdType, payload)
	cmd.TTL = opts.ttl

	keyOverride, err := resolveKeyOverride(cfg)
	if err != nil {
		return err
	}

	strategy := cfg.Dispatch.Strategy
	if opts.strategy != "" {
		strategy = opts.strategy
	}

	observers, cleanup, err := buildObservers(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	dispatcher, err := dispatch.New(dispatch.Options{
		Registry: reg,
		Local: &transport.LocalOpener{
			DialTimeout: cfg.GetDialTimeout(),
			Logger:      log,
		},
		Cloud: &transport.CloudOpener{
			Host:   resolveCloudHost(cfg),
			Token:  cfg.Cloud.Token,
			Logger: log,
		},
		Discoverer: prober,
		Config: dispatch.Config{
			Strategy:       dispatch.Strategy(strategy),
			Attempts:       cfg.Dispatch.Attempts,
			Backoff:        cfg.GetBackoff(),
			AttemptTimeout: cfg.GetAttemptTimeout(),
			GlobalTimeout:  cfg.GetGlobalTimeout(),
			MaxInFlight:    int64(cfg.Dispatch.MaxInFlight),
			Freshness:      cfg.GetFreshness(),
			KeyOverride:    keyOverride,
		},
		Logger:    log,
		Observers: observers,
	})
	if err != nil {
		return fmt.Errorf("configuring dispatcher: %w", err)
	}

	results, err := dispatcher.Dispatch(ctx, opts.targets, cmd)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	if err := printResults(results); err != nil {
		return err
	}

	if results.Failed() > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d devices failed\n", results.Failed(), len(results))
		return errDevicesFailed
	}
	return nil
}

// resultLine is the stdout shape of one device outcome.
type resultLine struct {
	UnitID    string          `json:"unit_id"`
	State     string          `json:"state"`
	Transport string          `json:"transport,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Attempts  int             `json:"attempts"`
	LatencyMS int64           `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// printResults writes one JSON line per device to stdout, sorted by unit id
// so output is stable across runs.
func printResults(results dispatch.Results) error {
	lines := make([]resultLine, 0, len(results))
	for _, r := range results {
		line := resultLine{
			UnitID:    string(r.UnitID),
			State:     string(r.State),
			Transport: string(r.Transport),
			Kind:      string(r.Kind),
			Attempts:  r.Attempts,
			LatencyMS: r.Latency.Milliseconds(),
		}
		if r.Err != nil {
			line.Error = r.Err.Error()
		}
		if r.Response != nil && json.Valid(r.Response.Payload) {
			line.Response = r.Response.Payload
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].UnitID < lines[j].UnitID })

	enc := json.NewEncoder(os.Stdout)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

// buildObservers connects the optional outcome sinks. The returned cleanup
// closes whatever connected and is safe to call once.
func buildObservers(cfg *config.Config, log *logging.Logger) ([]dispatch.Observer, func(), error) {
	var observers []dispatch.Observer
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Error("closing MQTT", "error", err)
			}
		})
		observers = append(observers, mqtt.NewOutcomePublisher(client, byte(cfg.MQTT.QoS), log))
	}

	if cfg.Telemetry.Enabled {
		client, err := telemetry.Connect(cfg.Telemetry)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connecting to telemetry: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		closers = append(closers, func() {
			// Close flushes; a short CLI run must not drop buffered points.
			if err := client.Close(); err != nil {
				log.Error("closing telemetry", "error", err)
			}
		})
		observers = append(observers, telemetry.NewRecorder(client))
	}

	return observers, cleanup, nil
}

// resolveKeyOverride turns the configured key material into an override
// key: explicit hex wins, then a derived passphrase key, then none.
func resolveKeyOverride(cfg *config.Config) ([]byte, error) {
	if cfg.Keys.AESKey != "" {
		key, err := crypt.ParseKey(cfg.Keys.AESKey)
		if err != nil {
			return nil, fmt.Errorf("keys.aes_key: %w", err)
		}
		return key, nil
	}
	if cfg.Keys.Passphrase != "" {
		return crypt.DeriveKey(cfg.Keys.Passphrase), nil
	}
	return nil, nil
}

// resolveCloudHost picks the relay base URL: an explicit host always wins,
// otherwise production resolves to the well-known address. Validation has
// already rejected test/dev environments without a host.
func resolveCloudHost(cfg *config.Config) string {
	if cfg.Cloud.Host != "" {
		return cfg.Cloud.Host
	}
	return transport.ProdHost
}

// parseCommandType validates the -type flag.
func parseCommandType(s string) (device.CommandType, error) {
	switch device.CommandType(s) {
	case device.CommandGet, device.CommandSet, device.CommandPing, device.CommandReboot:
		return device.CommandType(s), nil
	default:
		return "", fmt.Errorf("unknown command type %q (want get, set, ping or reboot)", s)
	}
}

// resolveConfigPath returns the configuration file path.
// Precedence: -config flag, LUMEN_CONFIG environment variable, then the
// default path if it exists. No file at all runs on built-in defaults.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
