package ports

import (
	"context"

	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

// RemoteSession is the abstraction for an authenticated channel with the
// service that holds the second key of every 2-of-2 account. All operative
// calls require the session to be in the Authenticated state.
type RemoteSession interface {
	// State returns the current lifecycle state of the session.
	State() domain.SessionState
	// LoginData returns the account metadata received at login.
	LoginData() *domain.LoginData
	// GetTwoFactorConfig returns the 2FA setup of the account.
	GetTwoFactorConfig(ctx context.Context) (*domain.TwoFactorConfig, error)
	// RequestTwoFactorCode asks the service to dispatch a code for the given
	// action via the given method. It's a no-op for authenticator apps.
	RequestTwoFactorCode(
		ctx context.Context, method domain.TwoFactorMethod, action string,
	) error
	// SignRawTransaction submits a transaction to be co-signed, along with an
	// optional 2FA proof.
	SignRawTransaction(
		ctx context.Context, txHex string, proof *domain.TwoFactorData,
	) (*domain.SignedTransaction, error)
	// QueryFunding returns the latest address the service has handed out for
	// the given subaccount (nil for the primary one).
	QueryFunding(
		ctx context.Context, subaccount *uint16,
	) (*domain.FundingState, error)
	// Close terminates the session.
	Close()
}
