package providers

import (
	"context"
	"errors"

	"server/internal/domain"
)

// ErrNoPreview is returned by GeneratePreview when the capability has no
// meaningful preview phase; the dispatcher then skips straight to the final.
var ErrNoPreview = errors.New("provider: module has no preview phase")

// GenerateRequest describes a normalized request passed to any provider adapter.
type GenerateRequest struct {
	JobID  string
	Module domain.Module
	Params domain.JobParams
	Raw    []byte
}

// Artifact is one generated output prior to persistence. Either Data or URL is
// set: Data must still be handed to object storage, URL points at output the
// provider already hosts.
type Artifact struct {
	Data        []byte
	URL         string
	ContentType string
	SizeBytes   int64
}

// Adapter is the contract implemented by all provider adapters. Each module
// maps to exactly one capability endpoint.
type Adapter interface {
	GeneratePreview(ctx context.Context, req GenerateRequest) (*Artifact, error)
	GenerateFinal(ctx context.Context, req GenerateRequest) ([]Artifact, error)
	Name() string
}

// Registry resolves a module to its provider adapter. The mapping is static
// configuration, not runtime logic.
type Registry map[domain.Module]Adapter

// Resolve returns the adapter for a module.
func (r Registry) Resolve(m domain.Module) (Adapter, bool) {
	adapter, ok := r[m]
	return adapter, ok
}
