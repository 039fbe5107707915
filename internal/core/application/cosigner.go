package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
)

const (
	// CosignerOrdering is the priority the remote cosigner is registered with
	// on the wallet engine, so that local signers go first.
	CosignerOrdering uint32 = 200
	// SignRawTxAction is the action name 2FA codes are requested for.
	SignRawTxAction = "send_raw_tx"
)

// Cosigner gets the service's signature for the inputs of a PSBT, one at a
// time. It's registered on the wallet engine as a signer keyed by the
// fingerprint of the service key of an account.
type Cosigner struct {
	session     ports.RemoteSession
	coordinator *TwoFactorCoordinator
	fingerprint uint32

	lock sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewCosigner(
	session ports.RemoteSession, coordinator *TwoFactorCoordinator,
	fingerprint uint32,
) (*Cosigner, error) {
	if session == nil {
		return nil, ErrMissingSession
	}
	if coordinator == nil {
		return nil, ErrMissingResolver
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("cosigner: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &Cosigner{
		session:     session,
		coordinator: coordinator,
		fingerprint: fingerprint,
		log:         logFn,
		warn:        warnFn,
	}, nil
}

func (c *Cosigner) Fingerprint() uint32 {
	return c.fingerprint
}

func (c *Cosigner) Ordering() uint32 {
	return CosignerOrdering
}

// SignInput adds the service's signature for the given input to the packet.
// If the signature is already there, it returns without contacting the
// service. On failure the input is left untouched and the returned error
// wraps domain.ErrUserCanceled, so that the caller can retry.
func (c *Cosigner) SignInput(packet *psbt.Packet, index int) error {
	if packet == nil || packet.UnsignedTx == nil {
		return ErrMissingPacket
	}
	if index < 0 || index >= len(packet.Inputs) {
		return ErrInputOutOfRange
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	serviceKey := findDerivation(packet.Inputs[index].Bip32Derivation, c.fingerprint)
	if serviceKey == nil {
		return domain.ErrInvalidScript
	}
	if hasPartialSig(packet.Inputs[index].PartialSigs, serviceKey.PubKey) {
		return nil
	}

	txHex, err := transportTx(packet)
	if err != nil {
		c.warn(err, "failed to build transport tx for input %d", index)
		return fmt.Errorf("%w: %w", domain.ErrUserCanceled, err)
	}

	signedTx, err := runDetached(
		context.Background(),
		func(ctx context.Context) (*domain.SignedTransaction, error) {
			proof, err := c.coordinator.Proof(ctx, SignRawTxAction)
			if err != nil {
				return nil, err
			}
			return c.session.SignRawTransaction(ctx, txHex, proof)
		},
	)
	if err != nil {
		c.warn(err, "remote signature for input %d failed", index)
		return fmt.Errorf("%w: %w", domain.ErrUserCanceled, err)
	}

	sig, err := serviceSignature(signedTx.Tx, index)
	if err != nil {
		c.warn(err, "failed to parse signed tx for input %d", index)
		return fmt.Errorf("%w: %w", domain.ErrUserCanceled, err)
	}

	packet.Inputs[index].PartialSigs = append(
		packet.Inputs[index].PartialSigs, &psbt.PartialSig{
			PubKey:    serviceKey.PubKey,
			Signature: sig,
		},
	)
	c.log("added remote signature to input %d", index)
	return nil
}

// transportTx returns the serialized unsigned tx of the packet where every
// input that has a redeem script carries it in its script sig and the first
// known partial signature in its witness. The service needs it in this form
// to re-compute the sighash of its own input.
func transportTx(packet *psbt.Packet) (string, error) {
	tx := packet.UnsignedTx.Copy()
	for i, in := range packet.Inputs {
		if len(in.RedeemScript) > 0 {
			scriptSig, err := txscript.NewScriptBuilder().
				AddData(in.RedeemScript).Script()
			if err != nil {
				return "", err
			}
			tx.TxIn[i].SignatureScript = scriptSig
		}
		if len(in.PartialSigs) > 0 {
			tx.TxIn[i].Witness = wire.TxWitness{in.PartialSigs[0].Signature}
		}
	}

	buf := &bytes.Buffer{}
	if err := tx.Serialize(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// serviceSignature extracts the service's signature from the given input of
// the co-signed tx, ie. the second item of its witness.
func serviceSignature(txHex string, index int) ([]byte, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	if index >= len(tx.TxIn) {
		return nil, fmt.Errorf(
			"%w: signed tx has %d inputs", domain.ErrProtocolDecode, len(tx.TxIn),
		)
	}
	witness := tx.TxIn[index].Witness
	if len(witness) < 2 || len(witness[1]) <= 0 {
		return nil, fmt.Errorf(
			"%w: missing service signature in witness", domain.ErrProtocolDecode,
		)
	}
	return witness[1], nil
}

func findDerivation(
	derivations []*psbt.Bip32Derivation, fingerprint uint32,
) *psbt.Bip32Derivation {
	for _, d := range derivations {
		if d != nil && d.MasterKeyFingerprint == fingerprint {
			return d
		}
	}
	return nil
}

func hasPartialSig(sigs []*psbt.PartialSig, pubkey []byte) bool {
	for _, s := range sigs {
		if s != nil && bytes.Equal(s.PubKey, pubkey) {
			return true
		}
	}
	return false
}
