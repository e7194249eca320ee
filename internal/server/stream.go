package server

import (
	"fmt"
	"net/http"
)

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	pipeline Pipeline
}

// NewStreamHandler creates a new StreamHandler reading frames from p.
func NewStreamHandler(p Pipeline) *StreamHandler {
	return &StreamHandler{pipeline: p}
}

// ServeHTTP writes the latest frame, then one frame per pipeline update
// until the client goes away or the pipeline closes the subscription.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	updates, unsubscribe := h.pipeline.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeFrame(w, h.pipeline.LatestJPEG()); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFrame(w, h.pipeline.LatestJPEG()); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one multipart JPEG part. An empty frame is skipped.
func writeFrame(w http.ResponseWriter, jpeg []byte) error {
	if len(jpeg) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
