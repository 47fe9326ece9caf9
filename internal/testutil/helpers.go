// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/kernel"
)

// RequireVM skips the test unless IFCTL_VM_TEST is set. Tests that create or
// delete real kernel devices only run inside a disposable VM.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("IFCTL_VM_TEST") == "" {
		t.Skip("Skipping test: requires IFCTL_VM_TEST environment")
	}
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}

// SimChannel returns a channel over a fresh simulated kernel. The channel is
// closed when the test ends.
func SimChannel(t *testing.T) (*kernel.Sim, *kernel.Channel) {
	t.Helper()
	sim := kernel.NewSim()
	ch, err := kernel.OpenWith(sim, sim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return sim, ch
}

// HostChannel opens a channel on the running kernel, skipping outside a VM.
func HostChannel(t *testing.T) *kernel.Channel {
	t.Helper()
	RequireVM(t)
	ch, err := kernel.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}
