package ports

import (
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

type AccountEventHandler func(event domain.AccountEvent)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repositories implementations of the same concrete type.
type RepoManager interface {
	// AccountRepository returns the account repository.
	AccountRepository() domain.AccountRepository

	// RegisterHandlerForAccountEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForAccountEvent(
		eventType domain.AccountEventType, handler AccountEventHandler,
	)

	// Close closes the connection with all concrete repositories
	// implementations.
	Close()
}
