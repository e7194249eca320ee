package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ayusman/flowcog/internal/flow"
	"github.com/ayusman/flowcog/internal/overlay"
	"github.com/ayusman/flowcog/internal/plugin"
	"github.com/ayusman/flowcog/internal/store"
	"gocv.io/x/gocv"
)

// runPipeline is the frame loop. It ticks at IdleFPS while no centroid is
// tracked and at ActiveFPS while one is. Disabled ticks and failed reads
// leave the tracker untouched.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	active := false
	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.Camera().ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			u, err := a.ProcessFrame(frame)
			frame.Close()
			if err != nil {
				log.Printf("Error processing frame: %v", err)
				continue
			}

			if u.Active != active {
				active = u.Active
				fps, mode := IdleFPS, "idle"
				if active {
					fps, mode = ActiveFPS, "active"
				}
				a.Camera().SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
				log.Printf("Switched to %s mode", mode)
			}
		}
	}
}

// ProcessFrame runs one frame through the optical-flow stage and the
// tracker, annotates it in place and publishes the result. It must not be
// called concurrently.
func (a *App) ProcessFrame(frame *gocv.Mat) (Update, error) {
	start := time.Now()

	cfg := a.TrackerConfig()
	if cfg != a.tracker.Config() {
		if err := a.tracker.Reconfigure(cfg); err != nil {
			return Update{}, err
		}
	}

	hint := flow.HintRedetect
	if a.tracker.State().Reuse {
		hint = flow.HintReuse
	}

	pairs, err := a.estimator.Estimate(frame, hint, cfg.MaxCorners)
	if err != nil {
		return Update{}, fmt.Errorf("estimate flow: %w", err)
	}

	var res flow.Result
	if pairs == nil {
		// Baseline frame: nothing to compare against yet.
		st := a.tracker.State()
		res = flow.Result{Active: st.Active, Point: st.Centroid, Hint: hint, Dominant: -1}
	} else {
		res = a.tracker.Update(pairs, frame.Cols())
	}

	a.mu.RLock()
	avg := a.avgProcessingLocked()
	a.mu.RUnlock()

	overlay.Annotate(frame, res, avg)
	jpeg, err := encodeJPEG(frame)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
	}

	elapsed := time.Since(start)

	a.mu.Lock()
	a.frames++
	if res.Active {
		a.activeFrames++
	}
	a.processing += elapsed
	u := newUpdate(a.frames, res, elapsed)
	a.last = &u
	if jpeg != nil {
		a.latestJPEG = jpeg
	}
	sessionID := a.sessionID
	a.mu.Unlock()

	a.publish(u)
	a.report(sessionID, res, u, image.Pt(frame.Cols(), frame.Rows()))

	return u, nil
}

// reportable reports whether a result is recorded and sent to plugins.
// Moves within MinMoveReport carry no Move and are left out.
func reportable(res flow.Result) bool {
	switch res.Event {
	case flow.EventAppear, flow.EventLost:
		return true
	case flow.EventMove:
		return res.Move != nil
	}
	return false
}

func (a *App) report(sessionID string, res flow.Result, u Update, frameSize image.Point) {
	switch res.Event {
	case flow.EventAppear:
		log.Printf("Motion appeared at (%d, %d)", u.X, u.Y)
	case flow.EventLost:
		log.Println("Motion lost")
	}
	if !reportable(res) {
		return
	}
	a.record(sessionID, u)
	a.dispatch(u, frameSize)
}

func newUpdate(n int, res flow.Result, elapsed time.Duration) Update {
	u := Update{
		Frame:        n,
		Time:         time.Now(),
		Active:       res.Active,
		Event:        string(res.Event),
		NumDirs:      res.NumDirs,
		Dominant:     res.Dominant,
		DominantSize: res.DominantSize,
		Hint:         res.Hint.String(),
		ProcessingMs: durationMs(elapsed),
	}
	if res.Active {
		u.X, u.Y = res.Point.X, res.Point.Y
	}
	if res.Move != nil {
		d, ang := res.Move.Distance, res.Move.Angle
		u.Distance, u.Angle = &d, &ang
	}
	return u
}

func encodeJPEG(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// record stores a centroid event for the current session.
func (a *App) record(sessionID string, u Update) {
	if a.config.Store == nil || sessionID == "" {
		return
	}

	e := &store.CentroidEvent{
		SessionID: sessionID,
		Frame:     u.Frame,
		Kind:      u.Event,
		X:         u.X,
		Y:         u.Y,
	}
	if u.Distance != nil {
		e.Distance, e.Angle = *u.Distance, *u.Angle
	}
	if err := a.config.Store.Events().Create(e); err != nil {
		log.Printf("Failed to record %s event: %v", u.Event, err)
	}
}

// dispatch runs the plugin actions bound to the update's event. Each action
// runs in its own goroutine.
func (a *App) dispatch(u Update, frameSize image.Point) {
	if a.config.Store == nil || u.Event == "" {
		return
	}

	bindings, err := a.config.Store.Bindings().ListByEvent(u.Event)
	if err != nil {
		log.Printf("Failed to load bindings for %s: %v", u.Event, err)
		return
	}
	if len(bindings) == 0 {
		return
	}

	params, err := json.Marshal(plugin.EventParams{
		X:           u.X,
		Y:           u.Y,
		FrameWidth:  frameSize.X,
		FrameHeight: frameSize.Y,
		Distance:    u.Distance,
		Angle:       u.Angle,
	})
	if err != nil {
		log.Printf("Failed to encode event params: %v", err)
		return
	}

	for _, b := range bindings {
		plug, err := a.pluginMgr.Resolve(b.PluginName, b.ActionName)
		if err != nil {
			log.Printf("Binding %s: %v", b.ID, err)
			continue
		}
		if !plug.Accepts(u.Event) {
			log.Printf("Binding %s: plugin %s does not handle %s events", b.ID, b.PluginName, u.Event)
			continue
		}

		req := &plugin.Request{
			Action: b.ActionName,
			Event:  u.Event,
			Config: b.Config,
			Params: params,
		}

		a.runs.Add(1)
		go func() {
			defer a.runs.Done()
			resp, err := a.pluginExec.Execute(context.Background(), plug, req)
			switch {
			case err != nil:
				log.Printf("Plugin %s/%s failed: %v", plug.Manifest.Name, req.Action, err)
			case !resp.Success:
				log.Printf("Plugin %s/%s reported: %s", plug.Manifest.Name, req.Action, resp.Error)
			}
		}()
	}
}
