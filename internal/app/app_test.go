package app

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/flowcog/internal/capture"
	"github.com/ayusman/flowcog/internal/flow"
	"github.com/ayusman/flowcog/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_Defaults(t *testing.T) {
	a := newTestApp(t, Config{PluginDir: t.TempDir()})

	if a.TrackerConfig() != flow.DefaultConfig() {
		t.Errorf("TrackerConfig() = %+v, want defaults", a.TrackerConfig())
	}
	if !a.IsEnabled() {
		t.Error("new app should be enabled")
	}
	if a.IsRunning() {
		t.Error("new app should not be running")
	}
	if _, ok := a.Camera().(*capture.SyntheticCamera); ok {
		t.Error("expected a device camera without Synthetic")
	}
}

func TestNew_Synthetic(t *testing.T) {
	a := newTestApp(t, Config{Synthetic: true})

	if _, ok := a.Camera().(*capture.SyntheticCamera); !ok {
		t.Errorf("Camera() = %T, want *capture.SyntheticCamera", a.Camera())
	}
	if !a.Status().Synthetic {
		t.Error("Status().Synthetic = false")
	}
}

func TestNew_InvalidTracker(t *testing.T) {
	cfg := flow.DefaultConfig()
	cfg.AngleRange = 7

	if _, err := New(Config{Tracker: cfg}); !errors.Is(err, flow.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestApp_SetEnabled(t *testing.T) {
	a := newTestApp(t, Config{})

	a.SetEnabled(false)
	if a.IsEnabled() || a.Status().Enabled {
		t.Error("expected disabled")
	}
	a.SetEnabled(true)
	if !a.IsEnabled() {
		t.Error("expected enabled")
	}
}

func TestApp_Subscribe_DropsOldest(t *testing.T) {
	a := newTestApp(t, Config{})

	updates, unsubscribe := a.Subscribe()
	defer unsubscribe()

	total := SubscriberBuffer + 3
	for i := 1; i <= total; i++ {
		a.publish(Update{Frame: i})
	}

	if len(updates) != SubscriberBuffer {
		t.Fatalf("buffered %d updates, want %d", len(updates), SubscriberBuffer)
	}
	if first := <-updates; first.Frame != total-SubscriberBuffer+1 {
		t.Errorf("oldest kept frame = %d, want %d", first.Frame, total-SubscriberBuffer+1)
	}
}

func TestApp_Subscribe_Unsubscribe(t *testing.T) {
	a := newTestApp(t, Config{})

	updates, unsubscribe := a.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-updates; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing with no subscribers must not block.
	a.publish(Update{Frame: 1})
}

func TestApp_Status_Idle(t *testing.T) {
	a := newTestApp(t, Config{})

	st := a.Status()
	if st.Running || st.Frames != 0 || st.Last != nil || st.SessionID != "" {
		t.Errorf("Status() = %+v, want an idle snapshot", st)
	}
	if a.LatestJPEG() != nil {
		t.Error("LatestJPEG() should be nil before any frame")
	}
}

func TestApp_StartStop_MockCamera(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s})

	cam := capture.NewMockCamera(nil, false)
	a.SetCamera(cam)
	a.SetEnabled(false)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.IsRunning() || !cam.IsOpen() {
		t.Fatal("expected running pipeline with open camera")
	}

	sessionID := a.Status().SessionID
	if sessionID == "" {
		t.Fatal("expected a session while running")
	}

	time.Sleep(50 * time.Millisecond)
	a.Stop()
	a.Stop()

	if a.IsRunning() || cam.IsOpen() {
		t.Error("expected stopped pipeline with closed camera")
	}

	sess, err := s.Sessions().GetByID(sessionID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("session should be finished after Stop")
	}
}

func TestApp_Dispatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := t.TempDir()
	dir := filepath.Join(pluginDir, "recorder")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(`{
		"name": "recorder",
		"executable": "run.sh",
		"actions": ["record"],
		"events": ["appear", "move"]
	}`), 0644)
	os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\ncat > received.json\necho '{\"success\":true}'\n"), 0755)

	s := newTestStore(t)
	s.Bindings().Create(&store.Binding{
		ID: "b1", Event: "appear", PluginName: "recorder", ActionName: "record", Enabled: true,
	})
	s.Bindings().Create(&store.Binding{
		ID: "b2", Event: "lost", PluginName: "recorder", ActionName: "record", Enabled: true,
	})

	a := newTestApp(t, Config{Store: s, PluginDir: pluginDir})
	if err := a.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	a.dispatch(Update{Frame: 3, Event: "appear", Active: true, X: 152, Y: 207}, capturedSize)
	a.runs.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "received.json"))
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	for _, want := range []string{`"action":"record"`, `"event":"appear"`, `"x":152`, `"frame_width":640`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("request %s missing %s", data, want)
		}
	}

	// The lost binding resolves but the plugin does not accept lost events.
	os.Remove(filepath.Join(dir, "received.json"))
	a.dispatch(Update{Frame: 4, Event: "lost"}, capturedSize)
	a.runs.Wait()
	if _, err := os.Stat(filepath.Join(dir, "received.json")); err == nil {
		t.Error("plugin should not run for an event it does not accept")
	}
}
