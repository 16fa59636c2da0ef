package main

import (
	"context"
	"io"
	"log"

	"github.com/pilab-dev/shadow-auth/cmd/authctl/cmd"
	"github.com/pilab-dev/shadow-auth/tracing"
)

func main() {
	// Spans from the CLI are not interesting on stdout.
	tp, err := tracing.InitTracerProviderWithWriter("shadow-auth-authctl", io.Discard)
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
