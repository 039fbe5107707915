package application

import "fmt"

var (
	ErrMissingSession     = fmt.Errorf("missing remote session")
	ErrMissingResolver    = fmt.Errorf("missing 2FA resolver")
	ErrMissingRepoManager = fmt.Errorf("missing repo manager")
	ErrMissingEngine      = fmt.Errorf("missing wallet engine")
	ErrMissingRegistry    = fmt.Errorf("missing service key registry")
	ErrMissingNetwork     = fmt.Errorf("missing network")
	ErrMissingMasterKey   = fmt.Errorf("missing master key")
	ErrMissingPacket      = fmt.Errorf("missing psbt")
	ErrInputOutOfRange    = fmt.Errorf("input index out of range")
	ErrEmptyTwoFactorCode = fmt.Errorf("empty 2FA code")
	ErrUnknownSubaccount  = fmt.Errorf("subaccount unknown to remote cosigner")
	ErrAccountMismatch    = fmt.Errorf("stored account does not belong to the logged in wallet")
)
