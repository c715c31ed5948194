package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the contract every resource provider implements. Providers
// run in-process; all cloud semantics live behind this boundary, the
// engine only orchestrates calls to it.
type Provider interface {
	// Create provisions a new resource and returns its provider-assigned
	// id plus any computed attributes.
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// Update converges an existing resource toward the desired attributes
	// and returns refreshed computed attributes.
	Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)

	// Destroy removes the resource. Destroying a resource that is already
	// gone is not an error.
	Destroy(ctx context.Context, req *DestroyRequest) error

	// Get reads current computed attributes. Returns ErrNotFound if the
	// resource no longer exists.
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)

	// Schema returns the attribute schema for a resource type, used by
	// graph validation. Unknown types return an error.
	Schema(resourceType string) (*Schema, error)
}

type CreateRequest struct {
	Type       string
	Name       string
	Attributes map[string]any
}

type CreateResponse struct {
	ProviderID string
	Computed   map[string]any
}

type UpdateRequest struct {
	Type       string
	Name       string
	ProviderID string
	Attributes map[string]any
	Prior      map[string]any
}

type UpdateResponse struct {
	// ProviderID is set when the update replaced the resource and the
	// provider assigned a new identifier. Empty means the id is unchanged.
	ProviderID string
	Computed   map[string]any
}

type DestroyRequest struct {
	Type       string
	ProviderID string
	Prior      map[string]any
}

type GetRequest struct {
	Type       string
	ProviderID string
}

type GetResponse struct {
	Computed map[string]any
}

// ErrNotFound is returned by Get when the resource no longer exists.
var ErrNotFound = errors.New("resource not found")

// Error is a classified provider failure. Retryable errors (throttling,
// transient network faults) are retried by the engine with backoff; fatal
// errors abort the apply.
type Error struct {
	Op        string // "create", "update", "destroy", "get"
	Type      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider error classified as
// transient.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
