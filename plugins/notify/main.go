// Package main provides a notification plugin that announces when motion
// appears or is lost. It uses notify-send on Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
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

// Config is the per-binding configuration.
type Config struct {
	Title  string `json:"title"`
	DryRun bool   `json:"dry_run"`
}

// Params is the centroid sent with the event.
type Params struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "notify" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	cfg := Config{Title: "flowcog"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	var params Params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	msg, err := compose(req.Event, params, cfg)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if !cfg.DryRun {
		if err := show(msg); err != nil {
			writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
			return
		}
	}

	data, _ := json.Marshal(msg)
	writeSuccessResponse(data)
}

func compose(event string, p Params, cfg Config) (message, error) {
	switch event {
	case "appear":
		return message{Title: cfg.Title, Body: fmt.Sprintf("Motion at (%d, %d)", p.X, p.Y)}, nil
	case "lost":
		return message{Title: cfg.Title, Body: "Motion lost"}, nil
	case "move":
		return message{Title: cfg.Title, Body: fmt.Sprintf("Motion moved to (%d, %d)", p.X, p.Y)}, nil
	default:
		return message{}, fmt.Errorf("unknown event: %q", event)
	}
}

func show(m message) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(m.Body), strconv.Quote(m.Title))
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", m.Title, m.Body)
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
