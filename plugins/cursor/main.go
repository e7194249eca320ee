// Package main provides a cursor plugin that moves the desktop pointer to
// the motion centroid. It uses xdotool on Linux and cliclick on macOS.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-binding configuration. Mirror flips x for a camera
// facing the user.
type Config struct {
	ScreenWidth  int  `json:"screen_width"`
	ScreenHeight int  `json:"screen_height"`
	Mirror       bool `json:"mirror"`
	DryRun       bool `json:"dry_run"`
}

// Params is the centroid sent with the event.
type Params struct {
	X           int `json:"x"`
	Y           int `json:"y"`
	FrameWidth  int `json:"frame_width"`
	FrameHeight int `json:"frame_height"`
}

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "move-to" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	cfg := Config{ScreenWidth: 1920, ScreenHeight: 1080}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	var params Params
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
		return
	}

	pos, err := scale(params, cfg)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if !cfg.DryRun {
		if err := moveTo(pos); err != nil {
			writeErrorResponse(fmt.Sprintf("move-to failed: %v", err))
			return
		}
	}

	data, _ := json.Marshal(pos)
	writeSuccessResponse(data)
}

// scale maps a frame coordinate onto the screen.
func scale(p Params, cfg Config) (position, error) {
	if p.FrameWidth <= 0 || p.FrameHeight <= 0 {
		return position{}, errors.New("frame size is required")
	}
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		return position{}, errors.New("screen size must be positive")
	}

	x := p.X * cfg.ScreenWidth / p.FrameWidth
	y := p.Y * cfg.ScreenHeight / p.FrameHeight
	if cfg.Mirror {
		x = cfg.ScreenWidth - 1 - x
	}
	return position{X: clamp(x, cfg.ScreenWidth-1), Y: clamp(y, cfg.ScreenHeight-1)}, nil
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

func moveTo(p position) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("cliclick", fmt.Sprintf("m:%d,%d", p.X, p.Y))
	case "linux":
		cmd = exec.Command("xdotool", "mousemove", strconv.Itoa(p.X), strconv.Itoa(p.Y))
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
