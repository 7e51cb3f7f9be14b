// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"
)

// KernelTestEnv enables tests that subscribe to real netlink groups.
const KernelTestEnv = "SCRIBE_KERNEL_TEST"

// RequireKernel skips the test unless KernelTestEnv is set and the test runs
// as root. nflog and ctnetlink subscriptions need CAP_NET_ADMIN.
func RequireKernel(t *testing.T) {
	t.Helper()
	if os.Getenv(KernelTestEnv) == "" {
		t.Skip("Skipping test: requires " + KernelTestEnv + " environment")
	}
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
