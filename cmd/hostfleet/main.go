package main

import (
	"github.com/joho/godotenv"

	"github.com/hostfleet/hostfleet-cli/internal/cli"
)

func main() {
	// Load .env if present so HOSTFLEET_* variables can live next to the
	// project being managed. Absence is not an error.
	_ = godotenv.Load()

	cli.Execute()
}
