// Package app runs the motion-centroid pipeline: camera frames go through
// the optical-flow stage and the tracker, and the results are published to
// subscribers, recorded to the store and dispatched to plugins.
package app

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/ayusman/flowcog/internal/capture"
	"github.com/ayusman/flowcog/internal/detector"
	"github.com/ayusman/flowcog/internal/flow"
	"github.com/ayusman/flowcog/internal/plugin"
	"github.com/ayusman/flowcog/internal/store"
	"github.com/google/uuid"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate while no centroid is tracked.
	IdleFPS = 5
	// ActiveFPS is the frame rate while a centroid is tracked.
	ActiveFPS = 10
	// SubscriberBuffer is how many updates a slow subscriber may lag behind
	// before the oldest ones are dropped.
	SubscriberBuffer = 8
)

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string
	CameraID  int
	Synthetic bool
	Tracker   flow.Config
	Detector  detector.Config
	Estimator capture.EstimatorConfig
}

// Update is the published outcome of one processed frame.
type Update struct {
	Frame        int       `json:"frame"`
	Time         time.Time `json:"time"`
	Active       bool      `json:"active"`
	X            int       `json:"x"`
	Y            int       `json:"y"`
	Event        string    `json:"event,omitempty"`
	Distance     *int      `json:"distance,omitempty"`
	Angle        *int      `json:"angle,omitempty"`
	NumDirs      int       `json:"num_dirs"`
	Dominant     int       `json:"dominant"`
	DominantSize int       `json:"dominant_size"`
	Hint         string    `json:"hint"`
	ProcessingMs float64   `json:"processing_ms"`
}

// Point returns the centroid as an image point.
func (u Update) Point() image.Point {
	return image.Pt(u.X, u.Y)
}

// Status is a snapshot of the running pipeline.
type Status struct {
	Enabled         bool        `json:"enabled"`
	Running         bool        `json:"running"`
	Synthetic       bool        `json:"synthetic"`
	SessionID       string      `json:"session_id,omitempty"`
	Frames          int         `json:"frames"`
	ActiveFrames    int         `json:"active_frames"`
	AvgProcessingMs float64     `json:"avg_processing_ms"`
	Last            *Update     `json:"last,omitempty"`
	Tracker         flow.Config `json:"tracker"`
}

// App is the main application that orchestrates centroid tracking and
// action execution.
type App struct {
	config     Config
	camera     capture.Camera
	estimator  *capture.FlowEstimator
	tracker    *flow.Tracker
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	mu           sync.RWMutex
	enabled      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	trackerCfg   flow.Config
	sessionID    string
	frames       int
	activeFrames int
	processing   time.Duration
	last         *Update
	latestJPEG   []byte

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int

	runs sync.WaitGroup
}

// New creates a new App instance with the given configuration. Zero tracker
// and detector configs use their package defaults.
func New(config Config) (*App, error) {
	if config.Tracker == (flow.Config{}) {
		config.Tracker = flow.DefaultConfig()
	}
	if config.Detector == (detector.Config{}) {
		config.Detector = detector.DefaultConfig()
	}
	tracker, err := flow.NewTracker(config.Tracker)
	if err != nil {
		return nil, err
	}

	var camera capture.Camera
	if config.Synthetic {
		camera = capture.NewSyntheticCamera(capture.DefaultSyntheticConfig())
		log.Println("Using synthetic camera")
	} else {
		camera = capture.NewCamera(config.CameraID)
	}

	return &App{
		config:     config,
		camera:     camera,
		estimator:  capture.NewFlowEstimator(detector.NewShiTomasi(config.Detector), config.Estimator),
		tracker:    tracker,
		pluginMgr:  plugin.NewManager(config.PluginDir),
		pluginExec: plugin.NewExecutor(plugin.DefaultTimeout),
		enabled:    true,
		trackerCfg: config.Tracker,
		subs:       make(map[int]chan Update),
	}, nil
}

// SetEnabled enables or disables frame processing. A disabled pipeline
// keeps running but skips its ticks.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frame processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// IsRunning reports whether the pipeline goroutine is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// SetCamera replaces the frame source. It must be called while stopped.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetDetector replaces the corner detector used by the optical-flow stage.
// It must be called while stopped.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.estimator.Close()
	a.estimator = capture.NewFlowEstimator(d, a.config.Estimator)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens the camera, begins a session and starts the pipeline.
// Starting a running pipeline is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(IdleFPS)

	a.tracker.Reset()
	a.estimator.Reset()
	a.frames, a.activeFrames, a.processing = 0, 0, 0
	a.last = nil
	a.beginSessionLocked()

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Println("Tracking pipeline started")
	return nil
}

// Stop halts the pipeline, closes the camera and finishes the session.
// It waits for running plugin actions.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	done := a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	<-done

	a.mu.Lock()
	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.endSessionLocked()
	a.mu.Unlock()

	a.runs.Wait()
	log.Println("Tracking pipeline stopped")
}

// Close stops the pipeline and releases the optical-flow stage.
func (a *App) Close() error {
	a.Stop()

	a.subMu.Lock()
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
	a.subMu.Unlock()

	return a.estimator.Close()
}

func (a *App) beginSessionLocked() {
	a.sessionID = ""
	if a.config.Store == nil {
		return
	}

	s := &store.Session{ID: uuid.NewString(), CameraID: a.config.CameraID}
	if err := a.config.Store.Sessions().Create(s); err != nil {
		log.Printf("Failed to create session: %v", err)
		return
	}
	a.sessionID = s.ID
}

func (a *App) endSessionLocked() {
	if a.config.Store == nil || a.sessionID == "" {
		return
	}
	if err := a.config.Store.Sessions().Finish(a.sessionID, a.frames, a.activeFrames); err != nil {
		log.Printf("Failed to finish session %s: %v", a.sessionID, err)
	}
	a.sessionID = ""
}

// Subscribe returns a channel of updates and a function that unsubscribes.
// A subscriber that falls behind loses its oldest updates.
func (a *App) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, SubscriberBuffer)

	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			defer a.subMu.Unlock()
			if _, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(ch)
			}
		})
	}
}

func (a *App) publish(u Update) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for _, ch := range a.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Status returns a snapshot of the pipeline.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{
		Enabled:         a.enabled,
		Running:         a.stopCh != nil,
		Synthetic:       a.config.Synthetic,
		SessionID:       a.sessionID,
		Frames:          a.frames,
		ActiveFrames:    a.activeFrames,
		AvgProcessingMs: durationMs(a.avgProcessingLocked()),
		Tracker:         a.trackerCfg,
	}
	if a.last != nil {
		last := *a.last
		st.Last = &last
	}
	return st
}

// LatestJPEG returns the most recent annotated frame, or nil before the
// first processed frame.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestJPEG
}

// TrackerConfig returns the tuning that applies to the next frame.
func (a *App) TrackerConfig() flow.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trackerCfg
}

// SetTrackerConfig validates cfg and applies it before the next frame. The
// tuning is persisted when the app has a store.
func (a *App) SetTrackerConfig(cfg flow.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetMany(trackerSettings(cfg)); err != nil {
			return fmt.Errorf("save tracker settings: %w", err)
		}
	}

	a.mu.Lock()
	a.trackerCfg = cfg
	a.mu.Unlock()
	return nil
}

// LoadSettings applies tracker tuning persisted in the store.
func (a *App) LoadSettings() error {
	if a.config.Store == nil {
		return nil
	}

	values, err := a.config.Store.Settings().All()
	if err != nil {
		return err
	}

	cfg, err := applyTrackerSettings(a.TrackerConfig(), values)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	a.trackerCfg = cfg
	a.mu.Unlock()

	log.Printf("Loaded tracker settings: %+v", cfg)
	return nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

func (a *App) avgProcessingLocked() time.Duration {
	if a.frames == 0 {
		return 0
	}
	return a.processing / time.Duration(a.frames)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
