package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/octobounty/escrow-middleware/pkg/app"
	"github.com/octobounty/escrow-middleware/pkg/app/relayer"
	"github.com/octobounty/escrow-middleware/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadRelayer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = relayer.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Relayer exited with error: %v\n", err)
		os.Exit(1)
	}
}
