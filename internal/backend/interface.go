package backend

import (
	"context"
	"time"

	"fido/internal/services"
)

// Backend is the full ledger surface the HTTP layer runs against.
type Backend = services.Ledger

// CleanupFunc releases backend resources at shutdown.
type CleanupFunc func() error

// BackendResult pairs the backend with its cleanup, which may be nil.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what each backend needs to come up.
type Config struct {
	Type BackendType

	// Remote specific
	ExpenseAPIURL     string
	ExpenseAPIToken   string
	ExpenseAPITimeout time.Duration

	// SQLite specific
	SQLiteDBPath string
}

type BackendType string

const (
	RemoteBackend BackendType = "remote"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
