// Package providertest provides shared conformance tests for provider.Provider
// implementations. Call RunAll from a test function to verify a provider
// satisfies the full behavioral contract.
package providertest

import (
	"testing"

	"github.com/swap357/cirunner/internal/provider"
)

// RunAll runs the complete provider conformance suite as subtests. The
// provider must be started and hold no document.
func RunAll(t *testing.T, prov provider.Provider) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) { TestLoadEmpty(t, prov) })
	t.Run("SaveLoadRoundTrip", func(t *testing.T) { TestSaveLoadRoundTrip(t, prov) })
	t.Run("SaveReplacesDocument", func(t *testing.T) { TestSaveReplacesDocument(t, prov) })
	t.Run("SaveDetachesCaller", func(t *testing.T) { TestSaveDetachesCaller(t, prov) })
	t.Run("SaveEmptyDocument", func(t *testing.T) { TestSaveEmptyDocument(t, prov) })
}
