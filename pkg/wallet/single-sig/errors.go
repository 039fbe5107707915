package singlesig

import "fmt"

var (
	ErrMissingMasterKey     = fmt.Errorf("missing master key")
	ErrInvalidMasterKey     = fmt.Errorf("master key must be an extended private key")
	ErrMissingPacket        = fmt.Errorf("missing psbt")
	ErrInputOutOfRange      = fmt.Errorf("input index out of range")
	ErrMissingDerivation    = fmt.Errorf("input has no key origin for the local key")
	ErrMissingWitnessUtxo   = fmt.Errorf("input is missing the witness utxo")
	ErrMissingWitnessScript = fmt.Errorf("input is missing the witness script")
	ErrPubkeyMismatch       = fmt.Errorf("derived public key does not match input key origin")
)
