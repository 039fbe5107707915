package multisig

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	path "github.com/vulpemventures/green-cosigner/pkg/wallet/derivation-path"
	"github.com/vulpemventures/green-cosigner/pkg/wallet/mnemonic"
)

// Fingerprint is the BIP32 identifier of an extended key: the first 4 bytes
// of the hash160 of its public key.
type Fingerprint [4]byte

// FingerprintFromUint32 is the inverse of Fingerprint.Uint32.
func FingerprintFromUint32(v uint32) Fingerprint {
	var fp Fingerprint
	binary.LittleEndian.PutUint32(fp[:], v)
	return fp
}

// Uint32 returns the fingerprint in the little-endian integer form used by
// PSBT key-origin records.
func (f Fingerprint) Uint32() uint32 {
	return binary.LittleEndian.Uint32(f[:])
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// KeyFingerprint returns the fingerprint of the given extended key.
func KeyFingerprint(key *hdkeychain.ExtendedKey) (Fingerprint, error) {
	var fp Fingerprint
	pubkey, err := key.ECPubKey()
	if err != nil {
		return fp, err
	}
	copy(fp[:], btcutil.Hash160(pubkey.SerializeCompressed())[:4])
	return fp, nil
}

// DeriveServiceKey derives the service extended public key of an account from
// the service root key, the GAIT path assigned at login and the optional
// subaccount pointer. The result is always neutered.
func DeriveServiceKey(
	root *hdkeychain.ExtendedKey, gaitPath []uint16, subaccount *uint16,
) (*hdkeychain.ExtendedKey, Fingerprint, error) {
	if root == nil {
		return nil, Fingerprint{}, ErrMissingServiceKey
	}

	servicePath := path.NewServicePath(gaitPath, subaccount)
	key, err := DerivePublic(root, servicePath)
	if err != nil {
		return nil, Fingerprint{}, err
	}
	fp, err := KeyFingerprint(key)
	if err != nil {
		return nil, Fingerprint{}, err
	}
	return key, fp, nil
}

// DerivePublic walks the given non-hardened path starting from the public
// counterpart of key.
func DerivePublic(
	key *hdkeychain.ExtendedKey, derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	if !derivationPath.IsNonHardened() {
		return nil, ErrHardenedServicePath
	}

	hdNode, err := key.Neuter()
	if err != nil {
		return nil, err
	}
	for _, step := range derivationPath {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return hdNode, nil
}

// MasterKeyFromSeed returns the BIP32 master private key for the given seed.
func MasterKeyFromSeed(
	seed []byte, params *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	if params == nil {
		return nil, ErrMissingNetwork
	}
	return hdkeychain.NewMaster(seed, params)
}

// MasterKeyFromMnemonic returns the BIP32 master private key for the given
// BIP39 mnemonic and passphrase.
func MasterKeyFromMnemonic(
	words []string, passphrase string, params *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	seed, err := mnemonic.Seed(words, passphrase)
	if err != nil {
		return nil, err
	}
	return MasterKeyFromSeed(seed, params)
}
