package main

import (
	"os"

	"github.com/cargorun/cargorun/internal/cmd"
)

// Version is set via -ldflags at release build time.
var Version = "0.0.0-dev"

func main() {
	os.Exit(cmd.Execute(Version))
}
