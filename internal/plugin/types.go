// Package plugin discovers and runs external action plugins driven by
// motion-centroid events.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	Events       []string        `json:"events,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written as JSON to the plugin's stdin.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// EventParams carries the centroid that triggered an action.
type EventParams struct {
	X           int `json:"x"`
	Y           int `json:"y"`
	FrameWidth  int `json:"frame_width"`
	FrameHeight int `json:"frame_height"`
	// Distance and Angle are set for move events; Angle is in degrees
	// with the y axis pointing up.
	Distance *int `json:"distance,omitempty"`
	Angle    *int `json:"angle,omitempty"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// HasAction reports whether the plugin declares action.
func (p *Plugin) HasAction(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}

// Accepts reports whether the plugin handles event. A manifest without an
// events list accepts every event.
func (p *Plugin) Accepts(event string) bool {
	return len(p.Manifest.Events) == 0 || slices.Contains(p.Manifest.Events, event)
}
