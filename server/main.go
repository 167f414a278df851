package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"schlangen.tv/relay/engine"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file with GAMESERVER_HOST, GAMESERVER_PORT and WEBSOCKET_PORT")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("Schlangen spectator relay starting...")

	cfg, err := engine.LoadConfig(*envFile)
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = engine.NewServer(cfg).ListenAndServe(ctx)
	switch {
	case err == nil:
		log.Println("Relay stopped")
	case errors.Is(err, engine.ErrUpstreamClosed):
		log.Printf("Gameserver went away: %v", err)
		stop()
		os.Exit(2)
	default:
		log.Printf("Relay failed: %v", err)
		stop()
		os.Exit(1)
	}
}
