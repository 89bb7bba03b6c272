package config_test

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/waymark-rpg/waymark/internal/platform/config"
)

// Exitf calls os.Exit, so the assertion re-runs the test binary and
// inspects the child's exit code and stderr.
func TestExitfWritesStderrAndExitsNonzero(t *testing.T) {
	if os.Getenv("WAYMARK_CONFIG_TEST_EXITF") == "1" {
		config.Exitf("open journal: %v", os.ErrNotExist)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfWritesStderrAndExitsNonzero$")
	cmd.Env = append(os.Environ(), "WAYMARK_CONFIG_TEST_EXITF=1")
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("subprocess error = %T (%v), want *exec.ExitError", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(stderr.String(), "open journal: file does not exist") {
		t.Fatalf("stderr = %q, want the formatted message", stderr.String())
	}
}
