package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/spigell/gig-matcher/cmd"
)

func main() {
	// A missing .env is fine; variables may come from the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
