// kioskd is the offline-capable student agent. It mirrors the in-flight
// attempt and the quiz catalog into a local sqlite file, probes the gateway
// periodically, and replays buffered work when connectivity returns. The
// student UI talks to the Runner; this binary just wires it up.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizdeck/quizdeck/internal/client"
	"github.com/quizdeck/quizdeck/internal/kiosk"
	"github.com/quizdeck/quizdeck/internal/offline"
)

func main() {
	gatewayURL := envOr("GATEWAY_URL", "http://localhost:8080")
	statePath := os.Getenv("KIOSK_STATE_PATH")
	quizID := envOr("QUIZ_ID", "1")
	username := envOr("KIOSK_USER", "")
	password := os.Getenv("QUIZ_PASSWORD")
	loginPass := os.Getenv("KIOSK_LOGIN_PASSWORD")
	probeEvery := 15 * time.Second

	if username == "" {
		log.Fatal("KIOSK_USER is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := offline.Open(ctx, statePath)
	if err != nil {
		log.Fatalf("open local state: %v", err)
	}
	defer state.Close()

	c := client.New(gatewayURL, "")
	if c.Probe(ctx) {
		if err := c.Login(ctx, username, loginPass, "student"); err != nil {
			log.Printf("[kiosk] login failed, starting offline: %v", err)
		}
	} else {
		log.Printf("[kiosk] gateway unreachable at startup, running from local state")
	}

	runner := kiosk.NewRunner(c, state, quizID, username, password)
	log.Printf("kiosk agent up (gateway=%s quiz=%s user=%s)", gatewayURL, quizID, username)
	runner.RunProbeLoop(ctx, probeEvery)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
