package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"relayengine/internal/internet_bridge"
)

func main() {
	addr := flag.String("addr", ":5069", "listen address")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request agent timeout")
	flag.Parse()

	router := gin.Default()
	relay := internet_bridge.NewRelay(*timeout)
	relay.Register(router)

	srv := &http.Server{Addr: *addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("RELAY: Public server running on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("RELAY: Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("RELAY: Shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
