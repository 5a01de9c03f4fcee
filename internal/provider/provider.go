// Package provider defines the state store interface for cirunner.
package provider

import (
	"context"

	"github.com/swap357/cirunner/pkg/types"
)

// Provider is the durable home of the StateDocument. Implementations assume a
// single active writer: no cross-process locking is performed.
type Provider interface {
	// Load returns the current document, or an empty one if none exists.
	Load(ctx context.Context) (types.StateDocument, error)
	// Save persists the whole document. Readers never observe a partial write.
	Save(ctx context.Context, doc types.StateDocument) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
