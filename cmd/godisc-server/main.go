// Command godisc-server discretises model files posted over HTTP.
//
// Usage:
//
//	godisc-server [-config godisc.yaml] [-port 8080]
//
// Endpoints:
//
//	POST /discretise  discretise the model file in the body, reply with a JSON report
//	GET  /schema      blocks, methods and functions a model file may use
//	GET  /health      liveness check
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/njchilds90/godisc/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file.")
	port := flag.Int("port", 0, "Port to listen on. Overrides the configuration.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "godisc-server:", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "godisc-server:", err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(cfg, logger).routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("godisc server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
