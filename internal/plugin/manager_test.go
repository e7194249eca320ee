package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/<sub>/plugin.json holding m.
func writeManifest(t *testing.T, dir, sub string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, sub)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, "cursor", Manifest{
		Name:        "cursor",
		Version:     "1.0.0",
		Description: "Moves the cursor",
		Executable:  "cursor",
		Actions:     []string{"move-to"},
		Events:      []string{"appear", "move"},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "cursor" || plugin.Manifest.Version != "1.0.0" {
		t.Errorf("manifest = %+v", plugin.Manifest)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "cursor") {
		t.Errorf("expected executable inside plugin dir, got %q", plugin.Executable)
	}
}

func TestManager_Discover_SkipsBadManifests(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "good", Manifest{Name: "good", Executable: "good", Actions: []string{"a"}})
	writeManifest(t, tmpDir, "nameless", Manifest{Executable: "x"})

	broken := filepath.Join(tmpDir, "broken")
	os.MkdirAll(broken, 0755)
	os.WriteFile(filepath.Join(broken, "plugin.json"), []byte("{not json"), 0644)

	os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "stray-file"), []byte("x"), 0644)

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Errorf("discovered %d plugins, want only 'good'", len(plugins))
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))

	if err := manager.Discover(); err != nil {
		t.Errorf("Discover() on a missing dir error = %v, want nil", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_ListSorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"notify", "cursor", "zoom"} {
		writeManifest(t, tmpDir, name, Manifest{Name: name, Executable: name})
	}

	manager := NewManager(tmpDir)
	manager.Discover()

	var names []string
	for _, p := range manager.List() {
		names = append(names, p.Manifest.Name)
	}
	if len(names) != 3 || names[0] != "cursor" || names[2] != "zoom" {
		t.Errorf("List() = %v, want sorted by name", names)
	}
}

func TestManager_GetAndResolve(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "cursor", Manifest{Name: "cursor", Executable: "cursor", Actions: []string{"move-to"}})

	manager := NewManager(tmpDir)
	manager.Discover()

	if _, err := manager.Get("cursor"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if _, err := manager.Get("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrPluginNotFound", err)
	}

	if _, err := manager.Resolve("cursor", "move-to"); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
	if _, err := manager.Resolve("cursor", "click"); !errors.Is(err, ErrActionNotSupported) {
		t.Errorf("Resolve(click) error = %v, want ErrActionNotSupported", err)
	}
	if _, err := manager.Resolve("missing", "move-to"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrPluginNotFound", err)
	}

	if manager.PluginDir() != tmpDir {
		t.Errorf("PluginDir() = %q, want %q", manager.PluginDir(), tmpDir)
	}
}

func TestPlugin_Accepts(t *testing.T) {
	open := &Plugin{Manifest: Manifest{Name: "open"}}
	picky := &Plugin{Manifest: Manifest{Name: "picky", Events: []string{"lost"}}}

	if !open.Accepts("move") {
		t.Error("plugin without events list should accept every event")
	}
	if picky.Accepts("move") || !picky.Accepts("lost") {
		t.Error("plugin with events list should accept only those events")
	}
}
