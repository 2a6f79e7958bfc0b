package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"RedScrip/internal/api"
	"RedScrip/internal/bank"
	"RedScrip/internal/engine"
	"RedScrip/internal/identity"
	"RedScrip/internal/ledger"
	"RedScrip/internal/logger"
	"RedScrip/internal/registry"
	"RedScrip/internal/snapshot"
	"RedScrip/internal/storage"
)

// Node represents a running RedScrip node.
type Node struct {
	cfg     *Config
	storage *storage.Storage
	bank    *bank.Bank
	engine  *engine.Engine
	api     *api.Server
	snaps   *snapshot.Manager // snaps is nil when periodic snapshots are disabled
	service identity.Address
	admin   identity.Address
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg, service: cfg.ServiceKey.Address()}

	admin, err := cfg.adminAddress(n.service)
	if err != nil {
		return nil, err
	}
	n.admin = admin

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.restoreSnapshot(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initEngine(); err != nil {
		n.Close()
		return nil, err
	}

	n.initAPI()
	n.initSnapshots()

	return n, nil
}

// initStorage initializes the pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// restoreSnapshot applies the -restore file before the engine opens.
func (n *Node) restoreSnapshot() error {
	if n.cfg.RestorePath == "" {
		return nil
	}

	snap, err := snapshot.RestoreFile(n.storage, n.cfg.RestorePath)
	if err != nil {
		return fmt.Errorf("restore snapshot:\n%w", err)
	}

	logger.Info("snapshot restored", "file", n.cfg.RestorePath, "entries", len(snap.Entries))

	return nil
}

// initEngine wires the registry, ledgers and engine over storage.
func (n *Node) initEngine() error {
	condensers, err := registry.LoadCondenserSet(n.storage)
	if err != nil {
		return fmt.Errorf("load condenser set:\n%w", err)
	}

	n.bank = bank.New(n.storage)
	n.engine = engine.New(
		registry.NewStore(n.storage, n.service),
		condensers,
		ledger.New(n.storage),
		n.bank,
		engine.StaticAdmin(n.admin),
		n.service,
	)

	return nil
}

// initAPI builds the HTTP server over the engine.
func (n *Node) initAPI() {
	auth := api.NewAdminAuth(n.service, n.admin, registry.NewNonces(n.storage))

	n.api = api.New(
		n.cfg.HTTPAddress,
		n.admin,
		n.engine,
		n.engine,
		n.engine,
		n.bank,
		auth,
		snapshot.NewExporter(n.storage),
	)
}

// initSnapshots creates the periodic snapshot manager when enabled.
func (n *Node) initSnapshots() {
	if n.cfg.SnapshotInterval <= 0 {
		return
	}

	n.snaps = snapshot.NewManager(n.storage, n.cfg.SnapshotDir, n.cfg.SnapshotInterval)
}

// Run starts the node and blocks until shutdown signal.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	if n.snaps != nil {
		if err := n.snaps.Start(); err != nil {
			return fmt.Errorf("start snapshot manager:\n%w", err)
		}
	}

	go n.logEvents()

	return n.waitForShutdown()
}

// logEvents mirrors committed engine events into the log.
func (n *Node) logEvents() {
	for ev := range n.engine.Events() {
		switch ev.Kind {
		case engine.EventCertificateCreated:
			logger.Info("certificate type created", "id", ev.CertificateID, "amount", ev.Amount)
		case engine.EventRedeemed:
			logger.Info("certificate redeemed", "id", ev.CertificateID, "holder", ev.Holder, "amount", ev.Amount)
		case engine.EventCondensedRedeemed:
			logger.Info("condensed redemption", "certificates", len(ev.CertificateIDs), "holder", ev.Holder, "amount", ev.Amount)
		}
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.snaps != nil {
		n.snaps.Stop()
	}

	if n.storage != nil {
		n.storage.Sync()
		n.storage.Close()
	}

	return nil
}
