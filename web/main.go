package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/df07/go-starfield/pkg/config"
	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	configPath := flag.String("config", "", "YAML base configuration (defaults when empty)")
	flag.Parse()

	base := config.Default()
	if *configPath != "" {
		var err error
		if base, err = config.Load(*configPath); err != nil {
			log.Printf("Error loading configuration: %v", err)
			os.Exit(1)
		}
	}

	logger := core.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	webServer := server.NewServer(*port, base, logger)

	log.Printf("Starfield Web Server")
	log.Printf("Visit http://localhost:%d to start rendering", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
