package core

import "context"

// MemoryStore holds one UserMemory document per user, namespaced by user id.
//
// Consistency is last-writer-wins: concurrent turns for the same user may
// race on Put and the store keeps whichever write lands last. Callers must
// not assume ordering of writes across concurrent turns.
type MemoryStore interface {
	// Get returns the stored document, or (nil, nil) when the user has no
	// memory yet.
	Get(ctx context.Context, userID string) (*UserMemory, error)
	// Put replaces the whole document for the user.
	Put(ctx context.Context, userID string, memory *UserMemory) error
	// ListUsers returns every user id with a stored document.
	ListUsers(ctx context.Context) ([]string, error)
}
