package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/Jaypalsingh1/sovereignshare/internal/logging"
	"github.com/Jaypalsingh1/sovereignshare/internal/relay"
)

func main() {
	logging.Init()

	// 1. Create the Hub and run its event loop
	hub := relay.NewHub(slog.Default())
	go hub.Run()

	// 2. Register handlers
	http.HandleFunc("/health", relay.HealthHandler)
	http.HandleFunc("/status", relay.StatusHandler(hub))
	http.HandleFunc("/ws", relay.ServeWs(hub))

	// 3. Start the server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	slog.Info("starting relay server", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("relay server exited", "error", err)
		os.Exit(1)
	}
}
