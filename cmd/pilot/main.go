package main

import (
	"log"

	"lanepilot/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to start lane pilot: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Lane pilot stopped with error: %v", err)
	}
}
