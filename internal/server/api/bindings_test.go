package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/flowcog/internal/plugin"
	"github.com/ayusman/flowcog/internal/store"
)

type fakeResolver map[string][]string

func (f fakeResolver) Resolve(name, action string) (*plugin.Plugin, error) {
	actions, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", plugin.ErrPluginNotFound, name)
	}
	p := &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: actions}}
	if !p.HasAction(action) {
		return nil, fmt.Errorf("%w: %s/%s", plugin.ErrActionNotSupported, name, action)
	}
	return p, nil
}

func doJSON(t *testing.T, h http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBindingHandler_CRUD(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, fakeResolver{"cursor": {"move-to"}, "notify": {"notify"}})

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", createBindingRequest{
		Event:      "move",
		PluginName: "cursor",
		ActionName: "move-to",
		Config:     json.RawMessage(`{"mirror":true}`),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var created bindingResponse
	json.NewDecoder(rec.Body).Decode(&created)
	if created.ID == "" || !created.Enabled || string(created.Config) != `{"mirror":true}` {
		t.Errorf("created = %+v", created)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}

	disabled := false
	rec = doJSON(t, handler, http.MethodPut, "/api/bindings/"+created.ID, updateBindingRequest{Enabled: &disabled})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated bindingResponse
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated.Enabled || updated.Event != "move" || updated.PluginName != "cursor" {
		t.Errorf("updated = %+v", updated)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings", nil)
	var listed listBindingsResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Bindings) != 1 {
		t.Errorf("list returned %d bindings, want 1", len(listed.Bindings))
	}

	// Disabled bindings are not active for their event.
	rec = doJSON(t, handler, http.MethodGet, "/api/bindings?event=move", nil)
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Bindings) != 0 {
		t.Errorf("event list returned %d bindings, want 0", len(listed.Bindings))
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBindingHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  createBindingRequest
	}{
		{"bad event", createBindingRequest{Event: "wave", PluginName: "cursor", ActionName: "move-to"}},
		{"missing plugin", createBindingRequest{Event: "move", ActionName: "move-to"}},
		{"missing action", createBindingRequest{Event: "move", PluginName: "cursor"}},
		{"unknown plugin", createBindingRequest{Event: "move", PluginName: "zoom", ActionName: "in"}},
		{"unknown action", createBindingRequest{Event: "move", PluginName: "cursor", ActionName: "click"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			handler := NewBindingHandler(s, fakeResolver{"cursor": {"move-to"}})

			rec := doJSON(t, handler, http.MethodPost, "/api/bindings", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}

			if all, _ := s.Bindings().List(); len(all) != 0 {
				t.Errorf("invalid binding was stored: %+v", all)
			}
		})
	}
}

func TestBindingHandler_NoResolver(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", createBindingRequest{
		Event: "lost", PluginName: "anything", ActionName: "goes",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestBindingHandler_Errors(t *testing.T) {
	s := newTestStore(t)
	s.Bindings().Create(&store.Binding{ID: "b1", Event: "move", PluginName: "cursor", ActionName: "move-to", Enabled: true})
	handler := NewBindingHandler(s, nil)

	tests := []struct {
		name       string
		method     string
		url        string
		body       any
		wantStatus int
	}{
		{"get missing", http.MethodGet, "/api/bindings/nope", nil, http.StatusNotFound},
		{"put missing", http.MethodPut, "/api/bindings/nope", updateBindingRequest{}, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bindings/nope", nil, http.StatusNotFound},
		{"put bad event", http.MethodPut, "/api/bindings/b1", updateBindingRequest{Event: "wave"}, http.StatusBadRequest},
		{"bad list filter", http.MethodGet, "/api/bindings?event=wave", nil, http.StatusBadRequest},
		{"collection patch", http.MethodPatch, "/api/bindings", nil, http.StatusMethodNotAllowed},
		{"item post", http.MethodPost, "/api/bindings/b1", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.url, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
