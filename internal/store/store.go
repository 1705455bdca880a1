// Package store provides durable persistence for session documents.
//
// A document is an opaque JSON blob addressed by (kind, id). Saves are
// atomic: a reader never observes a half-written document, and an
// interrupted save leaves the previous version intact.
package store

import (
	"context"
	"errors"
)

// Document kinds used by the session managers.
const (
	KindState   = "state"
	KindForm    = "form"
	KindButtons = "buttons"
)

// ErrNotFound indicates no document exists for the given key.
var ErrNotFound = errors.New("document not found")

// Store persists per-session JSON documents.
type Store interface {
	// Load returns the stored document, or ErrNotFound.
	Load(ctx context.Context, kind, id string) ([]byte, error)
	// Save atomically replaces the stored document.
	Save(ctx context.Context, kind, id string, data []byte) error
	// List returns the ids of all stored documents of a kind, sorted.
	List(ctx context.Context, kind string) ([]string, error)
}
