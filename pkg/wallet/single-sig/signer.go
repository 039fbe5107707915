package singlesig

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

// DefaultOrdering makes the local signer run before any remote one.
const DefaultOrdering uint32 = 100

type NewSignerArgs struct {
	// MasterKey is the key the input key origins are expressed from.
	MasterKey *hdkeychain.ExtendedKey
	// Ordering defaults to DefaultOrdering.
	Ordering uint32
}

func (a NewSignerArgs) validate() error {
	if a.MasterKey == nil {
		return ErrMissingMasterKey
	}
	if !a.MasterKey.IsPrivate() {
		return ErrInvalidMasterKey
	}
	return nil
}

// Signer produces segwit v0 signatures for psbt inputs with the key derived
// from its master key along the input's key-origin path.
type Signer struct {
	masterKey   *hdkeychain.ExtendedKey
	fingerprint uint32
	ordering    uint32
}

func NewSigner(args NewSignerArgs) (*Signer, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	fp, err := multisig.KeyFingerprint(args.MasterKey)
	if err != nil {
		return nil, err
	}
	ordering := args.Ordering
	if ordering == 0 {
		ordering = DefaultOrdering
	}
	return &Signer{args.MasterKey, fp.Uint32(), ordering}, nil
}

func (s *Signer) Fingerprint() uint32 {
	return s.fingerprint
}

func (s *Signer) Ordering() uint32 {
	return s.ordering
}

// SignInput adds the signature of the local key to the given input. It's a
// no-op if the input carries one already.
func (s *Signer) SignInput(packet *psbt.Packet, index int) error {
	if packet == nil || packet.UnsignedTx == nil {
		return ErrMissingPacket
	}
	if index < 0 || index >= len(packet.Inputs) ||
		index >= len(packet.UnsignedTx.TxIn) {
		return ErrInputOutOfRange
	}

	input := &packet.Inputs[index]
	var derivation *psbt.Bip32Derivation
	for _, d := range input.Bip32Derivation {
		if d.MasterKeyFingerprint == s.fingerprint {
			derivation = d
			break
		}
	}
	if derivation == nil {
		return ErrMissingDerivation
	}
	for _, sig := range input.PartialSigs {
		if bytes.Equal(sig.PubKey, derivation.PubKey) {
			return nil
		}
	}
	if input.WitnessUtxo == nil {
		return ErrMissingWitnessUtxo
	}
	if len(input.WitnessScript) <= 0 {
		return ErrMissingWitnessScript
	}

	key := s.masterKey
	var err error
	for _, step := range derivation.Bip32Path {
		key, err = key.Derive(step)
		if err != nil {
			return err
		}
	}
	prvkey, err := key.ECPrivKey()
	if err != nil {
		return err
	}
	pubkey := prvkey.PubKey().SerializeCompressed()
	if !bytes.Equal(pubkey, derivation.PubKey) {
		return ErrPubkeyMismatch
	}

	sighashType := input.SighashType
	if sighashType == 0 {
		sighashType = txscript.SigHashAll
	}

	prevOutFetcher := PrevOutFetcher(packet)
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, prevOutFetcher)
	hashForSignature, err := txscript.CalcWitnessSigHash(
		input.WitnessScript, sigHashes, sighashType, packet.UnsignedTx, index,
		input.WitnessUtxo.Value,
	)
	if err != nil {
		return err
	}

	signature := ecdsa.Sign(prvkey, hashForSignature)
	if !signature.Verify(hashForSignature, prvkey.PubKey()) {
		return fmt.Errorf("signature verification failed for input %d", index)
	}

	input.PartialSigs = append(input.PartialSigs, &psbt.PartialSig{
		PubKey:    pubkey,
		Signature: append(signature.Serialize(), byte(sighashType)),
	})
	return nil
}

// PrevOutFetcher returns the previous outputs of the packet inputs, as
// required to compute segwit sighashes. Inputs without witness utxo are
// skipped.
func PrevOutFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range packet.UnsignedTx.TxIn {
		if i >= len(packet.Inputs) || packet.Inputs[i].WitnessUtxo == nil {
			continue
		}
		fetcher.AddPrevOut(txIn.PreviousOutPoint, packet.Inputs[i].WitnessUtxo)
	}
	return fetcher
}
