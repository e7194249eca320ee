package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/flowcog/internal/app"
	"github.com/ayusman/flowcog/internal/server"
	"github.com/ayusman/flowcog/internal/store"
	"github.com/ayusman/flowcog/internal/tray"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cameraID := flag.Int("camera", 0, "camera device index")
	dataDir := flag.String("data", defaultDataDir(), "directory for the database")
	pluginDir := flag.String("plugins", "", "plugin directory (default <data>/plugins)")
	synthetic := flag.Bool("synthetic", false, "track a generated moving pattern instead of a camera")
	withTray := flag.Bool("tray", false, "show the system tray menu")
	flag.Parse()

	fmt.Println("flowcog - motion centroid tracker")

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(*dataDir, "flowcog.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if *pluginDir == "" {
		*pluginDir = filepath.Join(*dataDir, "plugins")
	}

	a, err := app.New(app.Config{
		Store:     st,
		PluginDir: *pluginDir,
		CameraID:  *cameraID,
		Synthetic: *synthetic,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	if err := a.LoadSettings(); err != nil {
		log.Printf("Ignoring stored tracker settings: %v", err)
	}
	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range a.PluginManager().List() {
		log.Printf("Plugin %s %s: %s", p.Manifest.Name, p.Manifest.Version, strings.Join(p.Manifest.Actions, ", "))
	}

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	webDir := findWebDir(*dataDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.NewHTTPServer(*addr, server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Pipeline:  a,
		Plugins:   a.PluginManager(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	if *withTray {
		runTray(ctx, stop, a, dashboardURL(*addr))
	} else {
		<-ctx.Done()
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// runTray blocks in the tray loop until quit or ctx is done.
func runTray(ctx context.Context, quit context.CancelFunc, a *app.App, url string) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnSettings(func() { openBrowser(url) })
	t.OnQuit(quit)

	updates, unsubscribe := a.Subscribe()
	defer unsubscribe()
	go func() {
		for u := range updates {
			t.SetCentroid(u.Point(), u.Active)
		}
	}()

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".flowcog"
	}
	return filepath.Join(homeDir, ".flowcog")
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
		return
	}
	go cmd.Wait()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
