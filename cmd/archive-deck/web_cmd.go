package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/web"
)

type serveOptions struct {
	listen   string
	token    string
	dataDir  string
	noEngine bool
}

// parseServeFlags parses serve flags over the [web] config section.
func parseServeFlags(cfg *config.Config, args []string) (serveOptions, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Web.GetListen(), "Listen address for the web server")
	token := fs.String("token", cfg.Web.Token, "Bearer token for API/WS access")
	dataDir := fs.String("data", cfg.Web.DataDir, "Serve this dataset directory under /data/")
	noEngine := fs.Bool("data-only", false, "Only serve the dataset, without the browsing API")

	fs.Usage = func() {
		fmt.Println("Usage: archive-deck serve [options]")
		fmt.Println()
		fmt.Println("Serve the web UI and JSON API, and optionally a dataset directory.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  archive-deck serve --data ./dataset")
		fmt.Println("  archive-deck serve --listen 127.0.0.1:9000 --token secret")
		fmt.Println("  archive-deck serve --data ./dataset --data-only")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return serveOptions{}, err
	}
	if fs.NArg() > 0 {
		return serveOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *noEngine && *dataDir == "" {
		return serveOptions{}, errors.New("--data-only requires --data")
	}
	if *dataDir != "" {
		info, err := os.Stat(*dataDir)
		if err != nil {
			return serveOptions{}, fmt.Errorf("data dir: %w", err)
		}
		if !info.IsDir() {
			return serveOptions{}, fmt.Errorf("data dir: %s is not a directory", *dataDir)
		}
	}
	return serveOptions{listen: *listen, token: *token, dataDir: *dataDir, noEngine: *noEngine}, nil
}

// handleServe runs the web server until SIGINT/SIGTERM. The listener is
// bound before the engine starts so the engine may use this same server
// as its HTTP origin.
func handleServe(debug bool, args []string) error {
	cfg := loadConfig()
	opts, err := parseServeFlags(cfg, args)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig(debug)
	logCfg.Stderr = os.Stderr
	logCfg.Format = "text"
	if logCfg.Level == "" && !logCfg.Debug {
		logCfg.Level = "info"
	}
	logging.Init(logCfg)
	defer logging.Shutdown()
	webLog := logging.ForComponent(logging.CompWeb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webCfg := web.Config{
		ListenAddr: opts.listen,
		Token:      opts.token,
		DataDir:    opts.dataDir,
	}
	var a *app
	if !opts.noEngine {
		a, err = openApp(cfg, "", nil)
		if err != nil {
			return err
		}
		defer a.Close()
		webCfg.Engine = a.engine
		webCfg.History = a.history
	}

	server := web.NewServer(webCfg)
	ln, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	fmt.Printf("Serving on http://%s\n", ln.Addr())

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	if a != nil {
		go func() {
			if err := a.engine.Start(ctx); err != nil {
				webLog.Error("engine_start_failed", slog.String("error", err.Error()))
			}
		}()
	}

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-serveErr
}
