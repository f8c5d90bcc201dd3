package engine

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// DefaultSocketPath returns the conventional engine socket location.
func DefaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/lex-engine.sock"
	}
	return filepath.Join(home, ".config", "lex", "engine.sock")
}

// Ensure connects to a running engine at socketPath, or spawns launchCmd
// and waits for its socket to appear.
//
// Steps:
//  1. Try connecting to an existing engine.
//  2. If unreachable and launchCmd is set: spawn the engine detached.
//  3. Wait up to dialTimeout for the socket to accept.
func Ensure(socketPath string, launchCmd []string, dialTimeout time.Duration, sink EventSink, logger *logging.Logger) (*Conn, error) {
	if dialTimeout <= 0 {
		dialTimeout = constants.EngineDialTimeout
	}
	if c, err := Dial(socketPath, dialTimeout, sink, logger); err == nil {
		return c, nil
	}

	if len(launchCmd) == 0 {
		return nil, fmt.Errorf("engine not running at %s and no launch command configured", socketPath)
	}

	logger.Info().Str("socket", socketPath).Msg("Starting engine process")
	if err := spawnEngine(launchCmd, socketPath); err != nil {
		return nil, err
	}

	if !waitForSocket(socketPath, dialTimeout) {
		return nil, fmt.Errorf("engine started but socket %s never became ready", socketPath)
	}
	return Dial(socketPath, dialTimeout, sink, logger)
}

// spawnEngine starts the engine process detached from the current terminal.
func spawnEngine(launchCmd []string, socketPath string) error {
	cmd := exec.Command(launchCmd[0], append(launchCmd[1:], "--socket", socketPath)...)
	cmd.Env = append(os.Environ(), "LEX_ENGINE_CHILD=1")

	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	return cmd.Process.Release()
}

// waitForSocket polls until the socket accepts a connection or the timeout
// elapses.
func waitForSocket(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
