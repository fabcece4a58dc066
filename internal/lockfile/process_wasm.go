//go:build js && wasm

package lockfile

// isProcessRunning always reports true in WASM: there is no way to probe
// another process's liveness, and flock itself is a no-op there, so
// StaleHolder never reports a stale holder.
func isProcessRunning(pid int) bool {
	return true
}
