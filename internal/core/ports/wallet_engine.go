package ports

import "github.com/btcsuite/btcd/btcutil/psbt"

// Signer is a signing capability the wallet engine invokes synchronously for
// every input of a PSBT that it is not able to sign alone.
type Signer interface {
	// Fingerprint returns the fingerprint of the key this signer signs for,
	// encoded as in PSBT key-origin records.
	Fingerprint() uint32
	// Ordering returns the priority of the signer. Lower values go first.
	Ordering() uint32
	// SignInput adds a signature to the given input of the packet, if missing.
	SignInput(packet *psbt.Packet, index int) error
}

// AddressValidator is invoked by the wallet engine for every newly derived
// address before it is returned to the caller.
type AddressValidator interface {
	Validate(derivations []*psbt.Bip32Derivation, script []byte) error
}

// WalletEngine is the narrow view this module has of the wallet that owns
// descriptors, utxos and the lifecycle of PSBTs.
type WalletEngine interface {
	AddSigner(fingerprint uint32, ordering uint32, signer Signer)
	RemoveSigner(fingerprint uint32)
	AddAddressValidator(validator AddressValidator)
	RemoveAddressValidator(validator AddressValidator)
}
