package multisig

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// LoginKeyIndex is the non-hardened child of the master key whose private
	// key signs login challenges.
	LoginKeyIndex uint32 = 0x4741b11e
	// LoginMessagePrefix is prepended to every login challenge before hashing.
	LoginMessagePrefix = "greenaddress.it      login "

	signedMessageMagic = "Bitcoin Signed Message:\n"
)

// MasterAddress returns the P2PKH address of the master public key, used by
// the service to look up the login challenge.
func MasterAddress(
	master *hdkeychain.ExtendedKey, params *chaincfg.Params,
) (string, error) {
	if master == nil {
		return "", ErrMissingMasterKey
	}
	if params == nil {
		return "", ErrMissingNetwork
	}

	pubkey, err := master.ECPubKey()
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubkey.SerializeCompressed()), params,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// SignedMessageHash returns the double SHA-256 of the message in the Bitcoin
// signed-message format.
func SignedMessageHash(message string) []byte {
	var buf bytes.Buffer
	// Writes on a bytes.Buffer never fail.
	_ = wire.WriteVarString(&buf, 0, signedMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// LoginChallengeHash returns the hash to sign to answer the given challenge.
func LoginChallengeHash(challenge string) []byte {
	return SignedMessageHash(LoginMessagePrefix + challenge)
}

// SignLoginChallenge answers the given login challenge with a DER encoded
// signature, in hex format, made with the login key of the master key.
func SignLoginChallenge(
	master *hdkeychain.ExtendedKey, challenge string,
) (string, error) {
	if master == nil {
		return "", ErrMissingMasterKey
	}
	if challenge == "" {
		return "", ErrMissingChallenge
	}
	if !master.IsPrivate() {
		return "", ErrInvalidLocalKey
	}

	loginKey, err := master.Derive(LoginKeyIndex)
	if err != nil {
		return "", err
	}
	privkey, err := loginKey.ECPrivKey()
	if err != nil {
		return "", err
	}

	sig := ecdsa.Sign(privkey, LoginChallengeHash(challenge))
	return hex.EncodeToString(sig.Serialize()), nil
}
