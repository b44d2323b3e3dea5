package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/registry"
	"github.com/lumenlabs/lumen-core/internal/wire"
)

// Relay hosts per environment. Test and dev hosts are deployment-specific
// and come from configuration; only production has a well-known address.
const ProdHost = "https://app-api.prod.qconnex.io"

// commandPath is the relay endpoint that forwards commands to devices.
const commandPath = "/device/command"

// defaultHTTPTimeout bounds one relay round trip when the caller's
// context carries no deadline.
const defaultHTTPTimeout = 30 * time.Second

// maxResponseSize caps how much relay response body is read.
const maxResponseSize = 1 << 20

// CloudOpener opens sessions that deliver commands through the cloud
// relay API.
type CloudOpener struct {
	// Host is the relay base URL. Defaults to ProdHost.
	Host string

	// Token is the bearer credential obtained by the excluded account
	// flow. Checked for expiry before any network I/O.
	Token string

	// Client is the HTTP client used for relay calls. Defaults to a
	// client with defaultHTTPTimeout.
	Client *http.Client

	// Logger receives session events. Defaults to a no-op logger.
	Logger Logger
}

// Kind reports the cloud transport path.
func (o *CloudOpener) Kind() Kind { return KindCloud }

// Open validates the bearer credential and returns a relay session for
// the device. An expired or missing token fails with ErrAuth before any
// I/O; a rejected token surfaces as ErrAuth from Send.
func (o *CloudOpener) Open(_ context.Context, rec registry.Record, _ []byte) (Session, error) {
	if err := checkBearer(o.Token); err != nil {
		return nil, err
	}

	host := o.Host
	if host == "" {
		host = ProdHost
	}
	client := o.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := o.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &cloudSession{
		host:   host,
		token:  o.Token,
		client: client,
		unitID: rec.Identity.UnitID,
		logger: logger,
	}, nil
}

// checkBearer rejects a missing or expired JWT before any network I/O.
// Opaque (non-JWT) tokens pass; the relay is the authority on those.
func checkBearer(token string) error {
	if token == "" {
		return fmt.Errorf("%w: no bearer token configured", ErrAuth)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("%w: bearer token expired %s", ErrAuth, exp.Format(time.RFC3339))
	}
	return nil
}

// cloudSession delivers commands to one device through the relay.
type cloudSession struct {
	host   string
	token  string
	client *http.Client
	unitID device.UnitID
	logger Logger
}

// Send posts the command to the relay and maps the per-device status in
// the response onto the transport error taxonomy.
func (s *cloudSession) Send(ctx context.Context, cmd device.Command) (*device.Response, error) {
	if cmd.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: created %s, ttl %s", ErrExpired, cmd.Created.Format(time.RFC3339), cmd.TTL)
	}

	body, err := wire.EncodeCloudRequest([]device.UnitID{s.unitID}, cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+commandPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: relay rejected credential (HTTP %d)", ErrAuth, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: relay error (HTTP %d)", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected relay status HTTP %d", wire.ErrDecode, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyHTTPErr(err)
	}

	statuses, err := wire.DecodeCloudResponse(data)
	if err != nil {
		return nil, err
	}

	for _, st := range statuses {
		if device.NormalizeUnitID(st.UnitID) != s.unitID {
			continue
		}
		if err := statusErr(st); err != nil {
			return nil, err
		}
		s.logger.Debug("relay response decoded", "unit_id", s.unitID, "bytes", len(st.Payload))
		return &device.Response{
			UnitID:   s.unitID,
			Payload:  st.Payload,
			Received: time.Now(),
		}, nil
	}
	return nil, fmt.Errorf("%w: relay response missing entry for %s", wire.ErrDecode, s.unitID)
}

// Close is a no-op; relay sessions hold no per-session resources beyond
// the shared HTTP client.
func (s *cloudSession) Close() error { return nil }

// statusErr maps a relay delivery status onto the transport taxonomy.
func statusErr(st wire.CloudStatus) error {
	switch st.Status {
	case wire.CloudStatusOK:
		return nil
	case wire.CloudStatusOffline:
		return fmt.Errorf("%w: relay reports device offline", ErrUnreachable)
	case wire.CloudStatusError:
		return fmt.Errorf("%w: relay delivery failed: %s", ErrUnreachable, st.Error)
	case wire.CloudStatusTimeout:
		return fmt.Errorf("%w: relay delivery timed out", ErrTimeout)
	case wire.CloudStatusUnauthorized:
		return fmt.Errorf("%w: relay denied access to device", ErrAuth)
	default:
		return fmt.Errorf("%w: unknown relay status %q", wire.ErrDecode, st.Status)
	}
}

// classifyHTTPErr folds an HTTP transport error into the taxonomy.
func classifyHTTPErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
