// Package provider defines the provider-neutral abstraction for remote
// long-running media generation. A concrete client (see internal/genmedia)
// starts video and music operations, reports their progress, and fetches
// completed artifacts. All provider-specific response shapes are mapped into
// the types here so the rest of the system never inspects raw payloads.
package provider

import (
	"context"
	"io"
	"strings"
)

// OperationHandle is an opaque reference to one remote long-running operation.
// It is created when a generation call returns and never mutated afterwards.
type OperationHandle struct {
	// ID is the URL-safe identifier of the operation, usable as a path
	// segment without escaping. It is the last segment of Name.
	ID string
	// Name is the full provider resource name, e.g.
	// "models/veo-3.1-generate-preview/operations/abc123".
	Name string
}

// IsZero reports whether the handle references no operation.
func (h OperationHandle) IsZero() bool {
	return h.ID == "" && h.Name == ""
}

// HandleFromName builds an OperationHandle from a full resource name.
// The ID is the last path segment of the name.
func HandleFromName(name string) OperationHandle {
	id := name
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		id = name[i+1:]
	}
	return OperationHandle{ID: id, Name: name}
}

// DeliveryMode indicates how a completed operation delivers its artifact.
type DeliveryMode int

const (
	// DeliveryNone means the operation produced no artifact reference.
	DeliveryNone DeliveryMode = iota
	// DeliveryInline means the artifact bytes were returned in the poll
	// response itself.
	DeliveryInline
	// DeliveryRemote means the artifact must be fetched from a URI with an
	// authenticated request.
	DeliveryRemote
)

// Artifact describes the output of a completed operation.
type Artifact struct {
	Mode DeliveryMode
	// Bytes holds the decoded payload when Mode is DeliveryInline.
	Bytes []byte
	// URI is the download location when Mode is DeliveryRemote.
	URI string
}

// PollResult is the outcome of checking one operation's status.
type PollResult struct {
	// Done reports whether the operation has reached a terminal state.
	Done bool
	// Err is the provider-reported operation error, set only when Done is
	// true and the operation failed.
	Err string
	// Artifact is set only when Done is true and the operation succeeded.
	Artifact Artifact
}

// VideoRequest contains the parameters for starting a video generation.
type VideoRequest struct {
	Prompt          string
	DurationSeconds int
	// ImageBytes is an optional reference image conditioning the generation.
	ImageBytes []byte
	// ImageMIMEType describes ImageBytes, e.g. "image/png".
	ImageMIMEType string
}

// MusicRequest contains the parameters for starting a music generation.
type MusicRequest struct {
	Prompt          string
	DurationSeconds int
}

// Client is the remote generative-media provider surface consumed by the job
// orchestrator. Implementations must be safe for concurrent use.
type Client interface {
	// StartVideo begins a video generation and returns its operation handle.
	StartVideo(ctx context.Context, req VideoRequest) (OperationHandle, error)

	// StartMusic begins a background-music generation and returns its
	// operation handle.
	StartMusic(ctx context.Context, req MusicRequest) (OperationHandle, error)

	// PollOperation checks the current state of an operation.
	PollOperation(ctx context.Context, op OperationHandle) (PollResult, error)

	// FetchArtifact streams the artifact at uri into dst using the client's
	// credentials. Used when a PollResult carries DeliveryRemote.
	FetchArtifact(ctx context.Context, uri string, dst io.Writer) error
}
