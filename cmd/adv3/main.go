package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roffe/adv3/cmd/adv3/cmd"
)

// shutdownGrace bounds how long an interrupted upload may take to cancel
// and close the printer session.
const shutdownGrace = 45 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("got %v, cancelling", s)
		cancel()
		select {
		case <-sig:
			log.Fatal("interrupted twice, exiting")
		case <-time.After(shutdownGrace):
			log.Fatal("shutdown took too long, exiting")
		}
	}()
	cmd.Execute(ctx)
}
