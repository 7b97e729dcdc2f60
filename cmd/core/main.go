// Package main is the core process's entry point: it loads process
// configuration, opens shared storage, wires the registry, LLM queue,
// service dispatcher, router, and privileged admin agent, starts both
// transports, and blocks for a shutdown signal.
//
// Grounded on the teacher's cmd/orchestrator/main.go boot sequence —
// load config, construct services in dependency order, start them,
// wait on SIGINT/SIGTERM, shut down in reverse order — generalized
// from GOX's support/broker/deployer trio to this core's
// registry/dispatcher/router/transport trio.
//
// Called by: operating system process execution.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/inkwell/core/internal/admin"
	"github.com/inkwell/core/internal/config"
	"github.com/inkwell/core/internal/dispatcher"
	"github.com/inkwell/core/internal/llm"
	"github.com/inkwell/core/internal/llmqueue"
	"github.com/inkwell/core/internal/notestore"
	"github.com/inkwell/core/internal/registry"
	"github.com/inkwell/core/internal/router"
	"github.com/inkwell/core/internal/store"
	"github.com/inkwell/core/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "optional YAML process-config file")
	dataDir := flag.String("data-dir", "", "root directory for the shared database and per-agent note trees")
	wsHost := flag.String("ws-host", "", "WebSocket bind host")
	wsPort := flag.String("ws-port", "", "WebSocket bind port")
	unixSocket := flag.String("unix-socket", "", "Unix-domain socket path (default: <data-dir>/core.sock)")
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.BoolVar(verbose, "verbose", false, "enable verbose logging")
	flag.Parse()

	cfg := loadConfig(*configPath)
	applyFlagOverrides(cfg, *dataDir, *wsHost, *wsPort, *unixSocket, *verbose)
	cfg.Resolve()

	if err := run(cfg); err != nil {
		log.Fatalf("core: fatal startup error: %v", err)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("core: failed to load config %s, using defaults: %v", path, err)
		return config.Default()
	}
	return cfg
}

func applyFlagOverrides(cfg *config.Config, dataDir, wsHost, wsPort, unixSocket string, verbose bool) {
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if wsHost != "" {
		cfg.WSHost = wsHost
	}
	if wsPort != "" {
		cfg.WSPort = wsPort
	}
	if unixSocket != "" {
		cfg.UnixSocket = unixSocket
	}
	if verbose {
		cfg.Debug = true
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	notesDir := filepath.Join(cfg.DataDir, "agents")
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return err
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, "core.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	tasks := store.NewTasks(db)
	events := store.NewEvents(db)
	articles := store.NewArticles(db)
	settings := store.NewSettings(db)

	capability := llmCapability()
	queue := llmqueue.New(capability, cfg.MaxConcurrentLLM)
	defer queue.Stop()

	notesFactory := func(agentID string) (*notestore.Store, error) {
		root, err := notestore.AgentRoot(notesDir, agentID)
		if err != nil {
			return nil, err
		}
		return notestore.New(root)
	}

	reg := registry.New()
	disp := dispatcher.New(tasks, events, articles, settings, queue, notesFactory)
	rtr := router.New(reg, disp)

	adminAgent := admin.New(reg, rtr, tasks, events, settings, queue, notesDir)
	agentID := adminAgent.Register()
	rtr.SetAdmin(adminAgent)
	log.Printf("core: admin agent registered as %s", agentID)

	srv := transport.NewServer(rtr, cfg.UnixSocket, cfg.WSHost, cfg.WSPort, cfg.Debug)
	if err := srv.Start(); err != nil {
		return err
	}
	log.Printf("core: listening on unix=%s ws=%s:%s", cfg.UnixSocket, cfg.WSHost, cfg.WSPort)

	waitForShutdown()

	log.Printf("core: shutting down")
	srv.Stop()
	return nil
}

// llmCapability builds the production LLM capability from
// ANTHROPIC_API_KEY. A missing key still boots the core — every
// chat request simply fails until one is configured, matching §1's
// framing of LLM inference as an external capability rather than a
// startup dependency.
func llmCapability() llmqueue.Capability {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	client := llm.NewAnthropicClient(apiKey)
	if apiKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			log.Printf("core: LLM connectivity check failed: %v", err)
		}
	} else {
		log.Printf("core: ANTHROPIC_API_KEY not set; LLM requests will fail until configured")
	}
	return client
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("core: received signal %s", sig)
}
