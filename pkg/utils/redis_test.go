package utils

import "testing"

func TestRunLockScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if runLockAcquireScript == nil || runLockReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
