package sengled

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joshp123/gohome-sengled/internal/core"
)

const (
	pluginID   = "sengled"
	platformID = "SengledPlatform"
)

// Stage is how far a bootstrap run got.
type Stage string

const (
	StageUnauthenticated   Stage = "unauthenticated"
	StageAuthenticated     Stage = "authenticated"
	StageDevicesDiscovered Stage = "devices_discovered"
	StageRegistered        Stage = "registered"
	StageFailed            Stage = "failed"
)

// Status is the outcome of the most recent bootstrap run.
type Status struct {
	Stage Stage `json:"stage"`
	// Reached is the last stage that completed before a failure.
	Reached    Stage     `json:"reached,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Devices    int       `json:"devices"`
	Registered int       `json:"registered"`
	Runs       int       `json:"runs"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// API is the subset of the Sengled cloud the bootstrapper needs.
type API interface {
	Login(ctx context.Context, creds Credentials) (string, error)
	Devices(ctx context.Context, token string) ([]Device, error)
}

// Registrar is the host side of accessory registration.
type Registrar interface {
	NewAccessory(displayName, id string) core.Accessory
	RegisterPlatformAccessories(ctx context.Context, pluginID, platformID string, accessories []core.Accessory) error
}

// Logger is the leveled sink failures are reported through.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

// Bootstrapper logs in, lists devices, and registers one accessory per device.
// Concurrent Bootstrap calls share a single run.
type Bootstrapper struct {
	api     API
	creds   Credentials
	host    Registrar
	log     Logger
	metrics *Metrics

	group singleflight.Group

	mu      sync.Mutex
	session Session
	status  Status
}

func NewBootstrapper(api API, creds Credentials, host Registrar, logger Logger, metrics *Metrics) *Bootstrapper {
	return &Bootstrapper{
		api:     api,
		creds:   creds,
		host:    host,
		log:     logger,
		metrics: metrics,
		status:  Status{Stage: StageUnauthenticated},
	}
}

// Authenticate logs in and stores the returned token on the session.
func (b *Bootstrapper) Authenticate(ctx context.Context, s *Session) error {
	token, err := b.api.Login(ctx, b.creds)
	if err != nil {
		return &AuthenticationError{Err: err}
	}
	s.Token = token
	return nil
}

// DiscoverDevices replaces the session device list with the server listing.
func (b *Bootstrapper) DiscoverDevices(ctx context.Context, s *Session) error {
	if s.Token == "" {
		return ErrTokenUnavailable
	}
	devices, err := b.api.Devices(ctx, s.Token)
	if err != nil {
		return &DiscoveryError{Err: err}
	}
	s.Devices = devices
	return nil
}

// Handoff registers one accessory per device, in list order. It returns how
// many registrations succeeded.
func (b *Bootstrapper) Handoff(ctx context.Context, devices []Device) (int, error) {
	for i, device := range devices {
		acc := b.host.NewAccessory(device.Name, core.GenerateUUID(device.ID))
		if acc.Context == nil {
			acc.Context = make(map[string]any)
		}
		acc.Context["device_id"] = device.ID
		if err := b.host.RegisterPlatformAccessories(ctx, pluginID, platformID, []core.Accessory{acc}); err != nil {
			return i, fmt.Errorf("register accessory %q: %w", device.Name, err)
		}
	}
	return len(devices), nil
}

// Bootstrap runs the login, discovery and registration sequence. Failures are
// logged and recorded in the returned status, never returned as errors.
func (b *Bootstrapper) Bootstrap(ctx context.Context) Status {
	result, _, _ := b.group.Do("bootstrap", func() (any, error) {
		return b.run(ctx), nil
	})
	return result.(Status)
}

// Run waits for host readiness, then bootstraps once.
func (b *Bootstrapper) Run(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-ready:
	}
	b.Bootstrap(ctx)
}

// Status returns the outcome of the latest run.
func (b *Bootstrapper) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Session returns a copy of the state the latest run left behind.
func (b *Bootstrapper) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.session
	s.Devices = append([]Device(nil), b.session.Devices...)
	return s
}

func (b *Bootstrapper) run(ctx context.Context) Status {
	session := b.Session()

	b.mu.Lock()
	status := Status{Stage: StageUnauthenticated, Runs: b.status.Runs + 1, StartedAt: time.Now()}
	b.status = status
	b.mu.Unlock()

	registered, err := b.stages(ctx, &session, &status)
	status.Registered = registered
	status.Devices = len(session.Devices)
	status.FinishedAt = time.Now()
	if err != nil {
		status.Reached = status.Stage
		status.Stage = StageFailed
		status.LastError = err.Error()
		b.log.Error("error during setup", "stage", status.Reached, "err", err.Error())
	} else {
		b.log.Info("setup complete", "devices", status.Devices)
	}

	b.mu.Lock()
	b.session = session
	b.status = status
	b.mu.Unlock()

	b.metrics.observe(status, session.Token != "")
	return status
}

func (b *Bootstrapper) stages(ctx context.Context, session *Session, status *Status) (int, error) {
	if err := b.Authenticate(ctx, session); err != nil {
		return 0, err
	}
	status.Stage = StageAuthenticated

	if err := b.DiscoverDevices(ctx, session); err != nil {
		return 0, err
	}
	status.Stage = StageDevicesDiscovered
	b.log.Debug("discovered devices", "count", len(session.Devices))

	registered, err := b.Handoff(ctx, session.Devices)
	if err != nil {
		return registered, err
	}
	status.Stage = StageRegistered
	return registered, nil
}
