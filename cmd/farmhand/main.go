// Command farmhand tends a running farmsim: each cycle it observes the farm,
// picks one action and performs it through the admin API.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/homestead/internal/farmhand"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("FARMSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("FARMSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("FARMHAND_INTERVAL", 30)
	memoryPath := envOrDefault("FARMHAND_MEMORY", "farmhand_memory.json")

	if adminKey == "" {
		slog.Error("FARMSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("farmhand starting",
		"api_url", apiURL,
		"interval", interval,
	)

	observer := farmhand.NewObserver(apiURL)
	actor := farmhand.NewActor(apiURL, adminKey)
	mem := farmhand.LoadMemory(memoryPath)

	slog.Info("waiting for farmsim API...")
	waitForAPI(apiURL)

	runCycle(observer, actor, mem, memoryPath)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(observer, actor, mem, memoryPath)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig, "history", mem.Summary())
			fmt.Println("Farmhand stopped.")
			return
		}
	}
}

func runCycle(observer *farmhand.Observer, actor *farmhand.Actor, mem *farmhand.CycleMemory, memoryPath string) {
	if _, err := farmhand.RunCycle(observer, actor, mem); err != nil {
		slog.Error("farmhand cycle failed", "error", err)
	}
	mem.Save(memoryPath)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the farmsim status endpoint with exponential backoff
// until it responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("farmsim API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("farmsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("farmsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
