package domain

import "context"

const (
	AccountAdded AccountEventType = iota
	AccountDeleted
)

var accountEventTypeString = map[AccountEventType]string{
	AccountAdded:   "AccountAdded",
	AccountDeleted: "AccountDeleted",
}

type AccountEventType int

func (t AccountEventType) String() string {
	return accountEventTypeString[t]
}

// AccountEvent holds info about an event occured within the repository.
type AccountEvent struct {
	EventType AccountEventType
	Account   Account
}

// AccountRepository is the abstraction for any kind of database intended to
// persist the co-signed accounts.
type AccountRepository interface {
	// AddAccount stores a new account if not yet existing.
	// Generates an AccountAdded event if successfull.
	AddAccount(ctx context.Context, account *Account) error
	// GetAccount returns the account with the given pointer, if existing.
	GetAccount(ctx context.Context, pointer uint16) (*Account, error)
	// ListAccounts returns all stored accounts sorted by pointer.
	ListAccounts(ctx context.Context) ([]Account, error)
	// DeleteAccount removes the account with the given pointer.
	// Generates an AccountDeleted event if successfull.
	DeleteAccount(ctx context.Context, pointer uint16) error
	// GetEventChannel returns the channel of AccountEvents.
	GetEventChannel() chan AccountEvent
}
