// Command aetheriusd is the persistent daemon process: it supervises the
// game server, runs the event bus, command pipeline and component loader,
// and serves the console socket and the read-only status HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aetherius-core/aetherius/internal/components"
	"github.com/aetherius-core/aetherius/internal/daemon"
	"github.com/aetherius-core/aetherius/internal/events"
	"github.com/aetherius-core/aetherius/internal/pipeline"
	"github.com/aetherius-core/aetherius/internal/statusapi"
	"github.com/aetherius-core/aetherius/internal/supervisor"
	"github.com/aetherius-core/aetherius/internal/webnotify"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// busAdapter satisfies arch.EventBus (Fire(ctx, interface{}) interface{})
// by delegating to the concrete *events.Bus, whose Fire is typed over
// events.Event. Components never construct raw events.Event values
// themselves in a way that would fail this assertion; a non-Event payload
// is simply dropped with a log line instead of panicking.
type busAdapter struct {
	bus *events.Bus
	log logger.Logger
}

func (a busAdapter) Fire(ctx context.Context, ev interface{}) interface{} {
	typed, ok := ev.(events.Event)
	if !ok {
		a.log.Warn("aetheriusd: dropped non-Event payload from component Emit")
		return ev
	}
	return a.bus.Fire(ctx, typed)
}

func main() {
	log := logger.New(os.Stdout, "aetheriusd", envOr("AETHERIUS_LOG_LEVEL", "info"))

	runDir := envOr("AETHERIUS_RUN_DIR", "/tmp/aetherius")
	command := os.Args[1:]
	if len(command) == 0 {
		command = []string{"java", "-jar", "server.jar", "nogui"}
	}

	bus := events.New(log)

	sup := supervisor.New(supervisor.Config{
		Command:     command,
		Dir:         envOr("AETHERIUS_SERVER_DIR", "."),
		StatePath:   filepath.Join(runDir, "process.json"),
		AutoRestart: envOr("AETHERIUS_AUTO_RESTART", "") == "1",
	}, log, bus)

	queue := pipeline.New(filepath.Join(runDir, "queue"), sup, log)

	loader := components.New(envOr("AETHERIUS_COMPONENTS_DIR", "components"), busAdapter{bus: bus, log: log}, sup, log)
	if err := loader.Scan(); err != nil {
		log.Warn("aetheriusd: component scan failed", "error", err.Error())
	}

	d := daemon.New(daemon.Config{
		SocketPath: filepath.Join(runDir, "aetherius.sock"),
		StatePath:  filepath.Join(runDir, "daemon.json"),
	}, log, bus, sup)
	d.SetComponentDispatcher(loader)

	hub := webnotify.NewHub(log)
	bus.SetWebNotifier(hub.Notify)

	api := statusapi.New(sup, loader, hub, log)
	httpSrv := &http.Server{Addr: envOr("AETHERIUS_HTTP_ADDR", ":8088"), Handler: api.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adopted, err := sup.Adopt(ctx)
	if err != nil {
		log.Warn("aetheriusd: adoption check failed", "error", err.Error())
	}
	if !adopted {
		if err := sup.Start(ctx); err != nil {
			log.Fatal("aetheriusd: failed to start supervised server", "error", err.Error())
		}
	}
	if err := loader.LoadAll(ctx); err != nil {
		log.Warn("aetheriusd: component load failed", "error", err.Error())
	}
	if err := loader.EnableAll(ctx); err != nil {
		log.Warn("aetheriusd: component enable failed", "error", err.Error())
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("aetheriusd: status API server failed", "error", err.Error())
		}
	}()
	go func() {
		if err := queue.Run(ctx); err != nil {
			log.Error("aetheriusd: command queue stopped", "error", err.Error())
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("aetheriusd: shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = sup.Stop(shutdownCtx)
		cancel()
	}()

	log.Info("aetheriusd: serving console socket", "path", filepath.Join(runDir, "aetherius.sock"))
	if err := d.Serve(ctx); err != nil {
		log.Error("aetheriusd: daemon serve failed", "error", err.Error())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
