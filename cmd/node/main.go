package main

import (
	"fmt"
	"os"

	"RedScrip/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg := parseFlags()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	var err error
	cfg.ServiceKey, err = loadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load service key:\n%w", err)
	}

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg, node)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(cfg *Config, node *Node) {
	logger.Info("starting RedScrip node",
		"service", node.service,
		"admin", node.admin,
		"http", cfg.HTTPAddress,
		"data", cfg.DataPath,
		"snapshot_interval", cfg.SnapshotInterval,
	)
}
