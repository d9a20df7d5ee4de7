package testfixtures

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/example/calendar-federation/internal/federation"
)

// FederationHarness bundles a temporary shared store and per-user store
// router for integration-style tests. Both are migrated on open and cleaned
// up with the owning test.
type FederationHarness struct {
	Stores  *federation.Router
	Shared  *federation.SharedStore
	DataDir string
}

// NewFederationHarness builds a harness rooted in a temporary directory.
// The idGenerator and now funcs flow into every store the router opens; nil
// values fall back to the production defaults.
func NewFederationHarness(tb testing.TB, idGenerator func(prefix string) string, now func() time.Time) *FederationHarness {
	tb.Helper()

	dir := tb.TempDir()

	shared, err := federation.OpenSharedStore(filepath.Join(dir, "shared.db"))
	if err != nil {
		tb.Fatalf("open shared store: %v", err)
	}
	tb.Cleanup(func() {
		if cerr := shared.Close(); cerr != nil {
			tb.Errorf("close shared store: %v", cerr)
		}
	})

	stores, err := federation.NewRouter(filepath.Join(dir, "stores"), idGenerator, now, nil)
	if err != nil {
		tb.Fatalf("prepare store router: %v", err)
	}
	tb.Cleanup(func() {
		if cerr := stores.Close(); cerr != nil {
			tb.Errorf("close user stores: %v", cerr)
		}
	})

	return &FederationHarness{
		Stores:  stores,
		Shared:  shared,
		DataDir: dir,
	}
}
