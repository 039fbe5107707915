package domain

import "fmt"

var (
	// ErrConnection is returned when the channel with the remote cosigner
	// cannot be established or drops. It is never retried automatically.
	ErrConnection = fmt.Errorf("connection with remote cosigner failed")
	// ErrAuthentication is returned when the login challenge is rejected.
	ErrAuthentication = fmt.Errorf("authentication with remote cosigner failed")
	// ErrNotAuthenticated is returned by operative calls made on a session
	// that is not in the authenticated state.
	ErrNotAuthenticated = fmt.Errorf("session is not authenticated")
	// ErrUserCanceled is returned when the remote cosigner did not produce a
	// signature (wrong 2FA code, limits exceeded, service side rejection).
	// The input is left unsigned and the caller may retry.
	ErrUserCanceled = fmt.Errorf("remote signature canceled or rejected")
	// ErrInvalidScript is returned when a script has no key-origin record for
	// the service key.
	ErrInvalidScript = fmt.Errorf("script does not belong to the service account")
	// ErrProtocolDecode is returned when a remote response has an unexpected
	// shape.
	ErrProtocolDecode = fmt.Errorf("malformed response from remote cosigner")
	// ErrFundingTimeout is returned when the service does not acknowledge an
	// address within the configured number of attempts.
	ErrFundingTimeout = fmt.Errorf("address not acknowledged by remote cosigner")
	// ErrTwoFactorMethodNotEnabled is returned when the chosen 2FA method is
	// not among those enabled for the account.
	ErrTwoFactorMethodNotEnabled = fmt.Errorf("2FA method not enabled")
	ErrUnknownTwoFactorMethod    = fmt.Errorf("unknown 2FA method")

	ErrAccountNotFound      = fmt.Errorf("account not found")
	ErrAccountAlreadyExists = fmt.Errorf("account already exists")
	ErrMissingServiceXpub   = fmt.Errorf("missing service xpub")
	ErrInvalidFingerprint   = fmt.Errorf("invalid service fingerprint, must be 4 bytes in hex format")
)
