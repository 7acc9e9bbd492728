package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/marmos91/dittoweb/internal/logger"
	"github.com/marmos91/dittoweb/pkg/config"
	"github.com/marmos91/dittoweb/pkg/metrics"

	"github.com/marmos91/dittoweb/internal/server"
	storeFs "github.com/marmos91/dittoweb/pkg/store/fs"
)

// defaultIndexPage is written to the web root on first start so a fresh
// filesystem deployment serves something for "/".
const defaultIndexPage = `<!DOCTYPE html>
<html>
<head><title>DittoWeb</title></head>
<body><h1>DittoWeb is running</h1></body>
</html>
`

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir)")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Positional overrides: [port] [host] [workers], each optional.
	if err := applyArgs(cfg, flag.Args()); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	if *dumpConfig {
		out, err := cfg.DumpYAML()
		if err != nil {
			log.Fatalf("Failed to dump configuration: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resources, err := config.CreateResourceStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create resource store: %v", err)
	}
	if closer, ok := resources.(io.Closer); ok {
		defer closer.Close()
	}

	// Seed a default index page so GET / works out of the box.
	if fsStore, ok := resources.(*storeFs.FSResourceStore); ok {
		seedDefaultIndex(fsStore.BasePath())
	}

	counters := metrics.NewCounters()
	srv := server.New(cfg.Server, resources, counters)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Press Ctrl+C to stop the server")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}

	logger.Info("Served %d request(s) over %d connection(s) (%d rejected)",
		counters.Requests(), counters.Closed(), counters.Rejected())
}

// applyArgs applies the documented positional overrides: port, bind host and
// worker-pool size, in that order, each optional.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("port %q must be an integer between 1 and 65535", args[0])
		}
		cfg.Server.Port = port
	}
	if len(args) > 1 {
		cfg.Server.Host = args[1]
	}
	if len(args) > 2 {
		workers, err := strconv.Atoi(args[2])
		if err != nil || workers < 1 {
			return fmt.Errorf("workers %q must be a positive integer", args[2])
		}
		cfg.Server.Workers = workers
	}
	if len(args) > 3 {
		return fmt.Errorf("unexpected argument %q (usage: dittoweb [port] [host] [workers])", args[3])
	}
	return nil
}

func seedDefaultIndex(basePath string) {
	indexPath := filepath.Join(basePath, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		return
	}

	if err := os.WriteFile(indexPath, []byte(defaultIndexPage), 0644); err != nil {
		logger.Warn("Failed to seed default index page: %v", err)
		return
	}
	logger.Info("Seeded default index page at %s", indexPath)
}
