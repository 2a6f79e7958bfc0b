package integration

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"RedScrip/client"
)

// safeBuffer wraps bytes.Buffer with a mutex for concurrent read/write.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends data to the buffer (implements io.Writer).
func (sb *safeBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.buf.Write(p)
}

// String returns the buffer contents as a string.
func (sb *safeBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.buf.String()
}

// Node represents a running RedScrip node process.
type Node struct {
	cmd      *exec.Cmd          // cmd is the running process
	httpAddr string             // httpAddr is the HTTP API address
	dataDir  string             // dataDir is the node's data directory
	keyPath  string             // keyPath is the node's service key file
	stdout   *safeBuffer        // stdout captures process output
	stderr   *safeBuffer        // stderr captures process errors
	cancel   context.CancelFunc // cancel kills the process
	done     chan struct{}      // done closes once the process has exited
}

// HTTPAddr returns the node's HTTP address.
func (n *Node) HTTPAddr() string { return n.httpAddr }

// DataDir returns the node's data directory.
func (n *Node) DataDir() string { return n.dataDir }

// KeyPath returns the path to the node's service key file.
func (n *Node) KeyPath() string { return n.keyPath }

// SnapshotDir returns the node's default snapshot directory.
func (n *Node) SnapshotDir() string { return filepath.Join(n.dataDir, "snapshots") }

// IsRunning checks if the node process is alive and started successfully.
func (n *Node) IsRunning() bool {
	if n.cmd == nil || n.cmd.Process == nil {
		return false
	}

	if !strings.Contains(n.stdout.String(), "starting RedScrip node") {
		return false
	}

	// ProcessState is set after the waitDone goroutine observes the exit.
	if n.cmd.ProcessState != nil {
		return false
	}

	return true
}

// Logs returns the node's stdout output.
func (n *Node) Logs() string { return n.stdout.String() }

// LogContains checks if the node's logs contain a substring.
func (n *Node) LogContains(s string) bool {
	return strings.Contains(n.stdout.String(), s)
}

// Stop terminates the node process without waiting for a clean exit.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}

	if n.cmd != nil && n.cmd.Process != nil {
		n.cmd.Process.Kill()

		select {
		case <-n.done:
		case <-time.After(time.Second):
		}
	}
}

// Shutdown stops the node via SIGTERM and waits for it to exit, so
// buffered writes reach disk before the data directory is reused.
func (n *Node) Shutdown(t *testing.T) {
	t.Helper()

	if n.cmd == nil || n.cmd.Process == nil {
		return
	}

	if err := n.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		n.Stop()
		return
	}

	select {
	case <-n.done:
	case <-time.After(10 * time.Second):
		t.Logf("node did not exit after SIGTERM, killing")
		n.Stop()
	}
}

// nodeOpts holds per-node launch configuration.
type nodeOpts struct {
	dataDir          string        // dataDir reuses an existing data directory
	admin            string        // admin is the -admin address override
	serviceKey       string        // serviceKey is the -service-key path override
	restorePath      string        // restorePath is a snapshot applied at startup
	snapshotInterval time.Duration // snapshotInterval enables periodic snapshots
}

// NodeOption configures a node launch.
type NodeOption func(*nodeOpts)

// WithDataDir reuses an existing data directory instead of a fresh one.
func WithDataDir(path string) NodeOption { return func(o *nodeOpts) { o.dataDir = path } }

// WithAdmin sets the admin identity, separating it from the service key.
func WithAdmin(addr string) NodeOption { return func(o *nodeOpts) { o.admin = addr } }

// WithServiceKey points the node at an existing service key file.
func WithServiceKey(path string) NodeOption { return func(o *nodeOpts) { o.serviceKey = path } }

// WithRestore applies a snapshot file before the node starts serving.
func WithRestore(path string) NodeOption { return func(o *nodeOpts) { o.restorePath = path } }

// WithSnapshotInterval enables periodic snapshots at the given interval.
func WithSnapshotInterval(d time.Duration) NodeOption {
	return func(o *nodeOpts) { o.snapshotInterval = d }
}

// Harness compiles the node binary once and manages processes spawned
// from it.
type Harness struct {
	t       *testing.T
	binary  string // binary is the compiled node executable
	testDir string // testDir holds per-node data directories
	next    int    // next numbers fresh node data directories
}

// NewHarness builds the node binary, prepares a temp directory, and
// registers cleanup.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDir, err := os.MkdirTemp("", "redscrip_e2e_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(testDir) })

	return &Harness{
		t:       t,
		binary:  buildBinary(t),
		testDir: testDir,
	}
}

// StartNode launches a node process and waits until it serves /health.
func (h *Harness) StartNode(options ...NodeOption) *Node {
	h.t.Helper()

	var opts nodeOpts
	for _, o := range options {
		o(&opts)
	}

	if opts.dataDir == "" {
		opts.dataDir = filepath.Join(h.testDir, fmt.Sprintf("node-%d", h.next))
		h.next++
	}

	node := &Node{
		httpAddr: freeAddr(h.t),
		dataDir:  opts.dataDir,
		keyPath:  opts.serviceKey,
		stdout:   &safeBuffer{},
		stderr:   &safeBuffer{},
		done:     make(chan struct{}),
	}

	if node.keyPath == "" {
		node.keyPath = filepath.Join(node.dataDir, "service.key")
	}

	if err := os.MkdirAll(node.dataDir, 0o755); err != nil {
		h.t.Fatalf("create node dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	node.cancel = cancel

	node.cmd = exec.CommandContext(ctx, h.binary, buildNodeArgs(node, opts)...)
	node.cmd.Stdout = node.stdout
	node.cmd.Stderr = node.stderr

	if err := node.cmd.Start(); err != nil {
		h.t.Fatalf("start node: %v", err)
	}

	go func() {
		node.cmd.Wait()
		close(node.done)
	}()

	h.t.Cleanup(node.Stop)

	waitHealthy(h.t, node, 15*time.Second)

	return node
}

// buildNodeArgs constructs command-line arguments for a node.
func buildNodeArgs(node *Node, opts nodeOpts) []string {
	args := []string{
		"-data", node.dataDir,
		"-http", node.httpAddr,
		"-service-key", node.keyPath,
		"-snapshot-interval", opts.snapshotInterval.String(),
		"-log-level", "debug",
	}

	if opts.admin != "" {
		args = append(args, "-admin", opts.admin)
	}

	if opts.restorePath != "" {
		args = append(args, "-restore", opts.restorePath)
	}

	return args
}

// Client creates a client.Client connected to a node.
func (h *Harness) Client(node *Node) *client.Client {
	h.t.Helper()

	cli, err := client.NewClient(node.httpAddr)
	if err != nil {
		h.t.Fatalf("create client: %v", err)
	}

	return cli
}

// ServiceKeypair loads the node's generated service key for signing.
func (h *Harness) ServiceKeypair(node *Node) *client.Keypair {
	h.t.Helper()

	kp, err := client.LoadKeypair(node.keyPath)
	if err != nil {
		h.t.Fatalf("load service key: %v", err)
	}

	return kp
}

// mustKeypair generates a fresh keypair or fails the test.
func mustKeypair(t *testing.T) *client.Keypair {
	t.Helper()

	kp, err := client.NewKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	return kp
}

// waitLog polls the node's stdout for a substring.
func waitLog(t *testing.T, node *Node, substr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if node.LogContains(substr) {
			return
		}

		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("log line %q not seen within %v", substr, timeout)
}

// freeAddr reserves an ephemeral port and returns its 127.0.0.1
// address. The listener closes before the node starts.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()

	return l.Addr().String()
}

// buildBinary compiles the node binary.
// Uses a unique temp file per test to avoid races when running tests in
// parallel.
func buildBinary(t *testing.T) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "redscrip_node_*")
	if err != nil {
		t.Fatalf("create temp binary file: %v", err)
	}

	binary := tmpFile.Name()
	tmpFile.Close()

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/node")
	cmd.Dir = getProjectRoot(t)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, output)
	}

	t.Cleanup(func() { os.Remove(binary) })

	return binary
}

// getProjectRoot returns the project root directory (containing go.mod).
func getProjectRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}

	dir := wd
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find project root from %s", wd)

	return ""
}
