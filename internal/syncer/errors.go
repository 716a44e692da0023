package syncer

import (
	"context"
	"errors"

	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

var (
	// ErrNotConfigured means provider ids or credentials are missing.
	ErrNotConfigured = credential.ErrNotConfigured
	// ErrAuthenticationFailed means the upstream rejected the credentials.
	ErrAuthenticationFailed = credential.ErrAuthenticationFailed
	// ErrSyncInProgress rejects a second concurrent sync for the same team.
	ErrSyncInProgress = errors.New("sync already in progress for team")
	// ErrTeamNotFound means the local team row does not exist.
	ErrTeamNotFound = errors.New("team not found")
)

// Kind classifies an error for sync logs and API responses.
type Kind string

const (
	KindNotConfigured        Kind = "not_configured"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindTransientUpstream    Kind = "transient_upstream"
	KindItemMapping          Kind = "item_mapping"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindInternal             Kind = "internal"
)

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	var mapErr *mappingError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrSyncInProgress):
		return KindConflict
	case errors.Is(err, ErrTeamNotFound), errors.Is(err, store.ErrNotFound), transport.IsNotFound(err):
		return KindNotFound
	case errors.As(err, &mapErr):
		return KindItemMapping
	case errors.Is(err, transport.ErrCircuitOpen), transport.IsTransient(err):
		return KindTransientUpstream
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTransientUpstream
	default:
		return KindInternal
	}
}

// mappingError marks an item that could not be normalized.
type mappingError struct {
	msg string
}

func (e *mappingError) Error() string { return e.msg }

func mappingErr(msg string) error { return &mappingError{msg: msg} }
