package sengled

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joshp123/gohome-sengled/internal/core"
)

type stubAPI struct {
	mu          sync.Mutex
	token       string
	loginErr    error
	devices     []Device
	devicesErr  error
	loginCalls  int
	deviceCalls int

	entered chan struct{}
	release chan struct{}
}

func (s *stubAPI) Login(_ context.Context, _ Credentials) (string, error) {
	s.mu.Lock()
	s.loginCalls++
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.loginErr != nil {
		return "", s.loginErr
	}
	return s.token, nil
}

func (s *stubAPI) Devices(_ context.Context, _ string) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceCalls++
	if s.devicesErr != nil {
		return nil, s.devicesErr
	}
	return s.devices, nil
}

type registration struct {
	pluginID    string
	platformID  string
	accessories []core.Accessory
}

type stubRegistrar struct {
	mu    sync.Mutex
	calls []registration
	err   error
}

func (s *stubRegistrar) NewAccessory(displayName, id string) core.Accessory {
	return core.NewAccessory(displayName, id)
}

func (s *stubRegistrar) RegisterPlatformAccessories(_ context.Context, pluginID, platformID string, accessories []core.Accessory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, registration{pluginID: pluginID, platformID: platformID, accessories: accessories})
	return s.err
}

func (s *stubRegistrar) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestBootstrapper(api API, host Registrar) (*Bootstrapper, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)
	return NewBootstrapper(api, Credentials{Username: "user", Password: "pass"}, host, logger, NewMetrics()), &buf
}

func twoLamps() []Device {
	return []Device{{ID: "1", Name: "Lamp A"}, {ID: "2", Name: "Lamp B"}}
}

func TestAuthenticateSetsTokenOnly(t *testing.T) {
	api := &stubAPI{token: "tok123"}
	boot, _ := newTestBootstrapper(api, &stubRegistrar{})

	session := Session{Devices: twoLamps()}
	if err := boot.Authenticate(context.Background(), &session); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if session.Token != "tok123" {
		t.Fatalf("unexpected token: %q", session.Token)
	}
	if len(session.Devices) != 2 || api.deviceCalls != 0 {
		t.Fatalf("authenticate mutated more than the token: %+v", session)
	}
}

func TestAuthenticateWrapsTransportError(t *testing.T) {
	boot, _ := newTestBootstrapper(&stubAPI{loginErr: errors.New("network down")}, &stubRegistrar{})

	var session Session
	err := boot.Authenticate(context.Background(), &session)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T %v", err, err)
	}
	if !strings.Contains(err.Error(), "network down") {
		t.Fatalf("expected underlying message, got %v", err)
	}
	if session.Token != "" {
		t.Fatalf("token set on failure: %q", session.Token)
	}
}

func TestDiscoverDevicesRequiresToken(t *testing.T) {
	api := &stubAPI{devices: twoLamps()}
	boot, _ := newTestBootstrapper(api, &stubRegistrar{})

	var session Session
	err := boot.DiscoverDevices(context.Background(), &session)
	if !errors.Is(err, ErrTokenUnavailable) {
		t.Fatalf("expected ErrTokenUnavailable, got %v", err)
	}
	var precondition PreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("expected PreconditionError, got %T", err)
	}
	if api.deviceCalls != 0 {
		t.Fatalf("expected no network calls, got %d", api.deviceCalls)
	}
}

func TestDiscoverDevicesWrapsFailure(t *testing.T) {
	boot, _ := newTestBootstrapper(&stubAPI{devicesErr: errors.New("unexpected EOF")}, &stubRegistrar{})

	session := Session{Token: "tok123"}
	err := boot.DiscoverDevices(context.Background(), &session)
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("expected DiscoveryError, got %T %v", err, err)
	}
	if !strings.Contains(err.Error(), "unexpected EOF") {
		t.Fatalf("expected underlying message, got %v", err)
	}
}

func TestBootstrapLoginFailure(t *testing.T) {
	api := &stubAPI{loginErr: errors.New("network down"), devices: twoLamps()}
	host := &stubRegistrar{}
	boot, logs := newTestBootstrapper(api, host)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageFailed || status.Reached != StageUnauthenticated {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !strings.Contains(logs.String(), "network down") {
		t.Fatalf("expected failure in log, got %q", logs.String())
	}
	if api.deviceCalls != 0 {
		t.Fatalf("discovery ran after login failure")
	}
	if len(boot.Session().Devices) != 0 || host.count() != 0 {
		t.Fatalf("expected no devices and no registrations")
	}
}

func TestBootstrapRegistersDevicesInOrder(t *testing.T) {
	host := &stubRegistrar{}
	boot, _ := newTestBootstrapper(&stubAPI{token: "tok123", devices: twoLamps()}, host)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageRegistered || status.Devices != 2 || status.Registered != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if boot.Session().Token != "tok123" {
		t.Fatalf("unexpected session token: %q", boot.Session().Token)
	}
	if host.count() != 2 {
		t.Fatalf("expected 2 registration calls, got %d", host.count())
	}

	for i, want := range []struct{ id, name string }{{"1", "Lamp A"}, {"2", "Lamp B"}} {
		call := host.calls[i]
		if call.pluginID != "sengled" || call.platformID != "SengledPlatform" {
			t.Fatalf("unexpected identifiers: %s/%s", call.pluginID, call.platformID)
		}
		if len(call.accessories) != 1 {
			t.Fatalf("expected one accessory per call, got %d", len(call.accessories))
		}
		acc := call.accessories[0]
		if acc.DisplayName != want.name || acc.UUID != core.GenerateUUID(want.id) {
			t.Fatalf("unexpected accessory %d: %+v", i, acc)
		}
	}

	first := host.calls[0].accessories[0].UUID
	boot.Bootstrap(context.Background())
	if host.calls[2].accessories[0].UUID != first {
		t.Fatalf("accessory identity changed across runs")
	}
	if boot.Status().Runs != 2 {
		t.Fatalf("expected 2 runs, got %d", boot.Status().Runs)
	}
}

func TestBootstrapEmptyDeviceList(t *testing.T) {
	host := &stubRegistrar{}
	boot, logs := newTestBootstrapper(&stubAPI{token: "tok123"}, host)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageRegistered || status.LastError != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if host.count() != 0 {
		t.Fatalf("expected no registrations, got %d", host.count())
	}
	if strings.Contains(logs.String(), "error during setup") {
		t.Fatalf("unexpected error log: %s", logs.String())
	}
}

func TestBootstrapDiscoveryFailureKeepsToken(t *testing.T) {
	host := &stubRegistrar{}
	boot, _ := newTestBootstrapper(&stubAPI{token: "tok123", devicesErr: errors.New("bad gateway")}, host)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageFailed || status.Reached != StageAuthenticated {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !strings.Contains(status.LastError, "failed to fetch devices from Sengled service: bad gateway") {
		t.Fatalf("unexpected last error: %s", status.LastError)
	}
	if boot.Session().Token != "tok123" {
		t.Fatalf("expected token to survive discovery failure")
	}
	if host.count() != 0 {
		t.Fatalf("registration ran after discovery failure")
	}
}

func TestBootstrapRegistrationFailureStops(t *testing.T) {
	host := &stubRegistrar{err: errors.New("host rejected")}
	boot, _ := newTestBootstrapper(&stubAPI{token: "tok123", devices: twoLamps()}, host)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageFailed || status.Reached != StageDevicesDiscovered {
		t.Fatalf("unexpected status: %+v", status)
	}
	if host.count() != 1 {
		t.Fatalf("expected registration to stop after first failure, got %d calls", host.count())
	}
}

func TestBootstrapConcurrentCallsShareRun(t *testing.T) {
	api := &stubAPI{
		token:   "tok123",
		devices: twoLamps(),
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	host := &stubRegistrar{}
	boot, _ := newTestBootstrapper(api, host)

	var wg sync.WaitGroup
	results := make([]Status, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = boot.Bootstrap(context.Background())
	}()
	<-api.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = boot.Bootstrap(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()

	api.mu.Lock()
	logins := api.loginCalls
	api.mu.Unlock()

	if got := host.count(); got != 2*logins {
		t.Fatalf("expected %d registrations for %d runs, got %d", 2*logins, logins, got)
	}
	if logins != 1 {
		t.Fatalf("expected concurrent calls to share one run, got %d logins", logins)
	}
	if results[0].Runs != results[1].Runs {
		t.Fatalf("expected shared result, got %+v and %+v", results[0], results[1])
	}
	if boot.Session().Token != "tok123" {
		t.Fatalf("unexpected token after concurrent runs: %q", boot.Session().Token)
	}
}

func TestRunWaitsForReady(t *testing.T) {
	host := &stubRegistrar{}
	boot, _ := newTestBootstrapper(&stubAPI{token: "tok123", devices: twoLamps()}, host)

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		boot.Run(context.Background(), ready)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if host.count() != 0 || boot.Status().Runs != 0 {
		t.Fatalf("bootstrap ran before readiness")
	}

	close(ready)
	<-done
	if host.count() != 2 {
		t.Fatalf("expected 2 registrations, got %d", host.count())
	}
}

func TestRunCancelledBeforeReady(t *testing.T) {
	api := &stubAPI{token: "tok123"}
	boot, _ := newTestBootstrapper(api, &stubRegistrar{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	boot.Run(ctx, make(chan struct{}))
	if api.loginCalls != 0 {
		t.Fatalf("expected no login after cancellation")
	}
}

func TestBootstrapAgainstHostAndServer(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Path {
		case "/oauth2/login":
			_, _ = io.WriteString(w, `{"access_token":"tok123"}`)
		case "/api/v1/devices":
			if r.Header.Get("Authorization") != "Bearer tok123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"devices":[{"id":"1","name":"Lamp A"},{"id":"2","name":"Lamp B"}]}`)
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	host := core.NewHost(nil, nil)
	boot := NewBootstrapper(NewClient(Config{BaseURL: server.URL}), Credentials{Username: "u", Password: "p"}, host, host.Logger(pluginID), nil)

	status := boot.Bootstrap(context.Background())
	if status.Stage != StageRegistered {
		t.Fatalf("unexpected status: %+v", status)
	}
	if requests != 2 {
		t.Fatalf("expected 2 requests, got %d", requests)
	}

	accessories := host.Accessories()
	if len(accessories) != 2 {
		t.Fatalf("expected 2 accessories, got %d", len(accessories))
	}
	if accessories[0].DisplayName != "Lamp A" || accessories[1].DisplayName != "Lamp B" {
		t.Fatalf("unexpected accessory order: %+v", accessories)
	}
	if accessories[0].PlatformID != "SengledPlatform" || accessories[0].Context["device_id"] != "1" {
		t.Fatalf("unexpected accessory: %+v", accessories[0])
	}
}
