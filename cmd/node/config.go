package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"RedScrip/client"
	"RedScrip/internal/identity"
)

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string

	// KeyPath is the path to the service's secp256k1 private key file.
	KeyPath string

	// AdminHex is the admin address in hex; empty selects the service
	// identity.
	AdminHex string

	// SnapshotDir is the directory for periodic snapshots.
	SnapshotDir string

	// SnapshotInterval is the time between snapshots; zero disables them.
	SnapshotInterval time.Duration

	// RestorePath is a snapshot file applied before the engine opens.
	RestorePath string

	// LogLevel is the minimum log level.
	LogLevel string

	// ServiceKey is the keypair the service identity derives from.
	ServiceKey *client.Keypair
}

// parseFlags parses command-line flags into Config.
func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DataPath, "data", "./data", "Data directory path")
	flag.StringVar(&cfg.HTTPAddress, "http", ":8080", "HTTP API address")
	flag.StringVar(&cfg.KeyPath, "service-key", "", "Service key path (default <data>/service.key)")
	flag.StringVar(&cfg.AdminHex, "admin", "", "Admin address in hex (default: the service identity)")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", "", "Snapshot directory (default <data>/snapshots)")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", 10*time.Minute, "Snapshot interval (0 disables)")
	flag.StringVar(&cfg.RestorePath, "restore", "", "Snapshot file to restore before startup")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	flag.Parse()

	if cfg.KeyPath == "" {
		cfg.KeyPath = filepath.Join(cfg.DataPath, "service.key")
	}

	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = filepath.Join(cfg.DataPath, "snapshots")
	}

	return cfg
}

// adminAddress resolves the admin identity: the -admin flag when set,
// otherwise the service identity itself.
func (c *Config) adminAddress(service identity.Address) (identity.Address, error) {
	if c.AdminHex == "" {
		return service, nil
	}

	admin, err := identity.ParseAddress(c.AdminHex)
	if err != nil {
		return identity.Address{}, fmt.Errorf("invalid -admin value:\n%w", err)
	}

	return admin, nil
}

// loadOrGenerateKey loads the service keypair from file or generates
// and saves a new one.
func loadOrGenerateKey(path string) (*client.Keypair, error) {
	kp, err := client.LoadKeypair(path)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create key directory:\n%w", err)
	}

	kp, err = client.NewKeypair()
	if err != nil {
		return nil, err
	}

	if err := kp.Save(path); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return kp, nil
}
