package main

import (
	"fmt"
	"log"
	"net/http"
	"stream-lab/internal"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	InspectPort    int    `env:"INSPECT_PORT,default=8081"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the server holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Serve the inspector only, the orchestrator isn't running here
	started := time.Now()
	stats := func() map[string]any {
		return map[string]any{
			"status": "viewer mode (read-only)",
			"uptime": time.Since(started).Round(time.Second).String(),
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", internal.NewInspectHandler(db, internal.DefaultMapper, stats))

	addr := fmt.Sprintf("localhost:%d", config.InspectPort)
	fmt.Printf("Viewer started at http://%s/inspect\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Inspector stopped: %v", err)
	}
}
