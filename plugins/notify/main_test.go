package main

import "testing"

func TestCompose(t *testing.T) {
	cfg := Config{Title: "flowcog"}

	tests := []struct {
		event string
		want  string
	}{
		{"appear", "Motion at (10, 20)"},
		{"move", "Motion moved to (10, 20)"},
		{"lost", "Motion lost"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			m, err := compose(tt.event, Params{X: 10, Y: 20}, cfg)
			if err != nil {
				t.Fatalf("compose() error = %v", err)
			}
			if m.Body != tt.want || m.Title != "flowcog" {
				t.Errorf("compose() = %+v, want body %q", m, tt.want)
			}
		})
	}

	if _, err := compose("wave", Params{}, cfg); err == nil {
		t.Error("expected error for unknown event")
	}
}
