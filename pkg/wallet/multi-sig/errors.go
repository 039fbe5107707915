package multisig

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	ErrMissingNetwork      = fmt.Errorf("missing network")
	ErrMissingServiceKey   = fmt.Errorf("missing service key")
	ErrMissingLocalKey     = fmt.Errorf("missing local key")
	ErrMissingMasterKey    = fmt.Errorf("missing master key")
	ErrMissingChallenge    = fmt.Errorf("missing login challenge")
	ErrMissingDescriptor   = fmt.Errorf("missing descriptor")
	ErrUnknownServiceKey   = fmt.Errorf("no service key registered for network")
	ErrInvalidServiceKey   = fmt.Errorf("service key must be a valid extended public key")
	ErrInvalidLocalKey     = fmt.Errorf("local key must be an extended private key")
	ErrInvalidServicePub   = fmt.Errorf("invalid service public key, must be 33 bytes compressed in hex format")
	ErrInvalidChainCode    = fmt.Errorf("invalid service chain code, must be 32 bytes in hex format")
	ErrHardenedServicePath = fmt.Errorf("service path must be in non-hardened range [0, %d]", hdkeychain.HardenedKeyStart-1)
	ErrOutOfRangeIndex     = fmt.Errorf("address index must be in non-hardened range [0, %d]", hdkeychain.HardenedKeyStart-1)
)
