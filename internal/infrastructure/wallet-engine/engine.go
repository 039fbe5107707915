package wallet_engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
)

var (
	ErrMissingPacket = fmt.Errorf("missing psbt")
)

// Engine is an in-process wallet engine. It dispatches the inputs of a psbt
// to the registered signers and the newly derived addresses to the
// registered validators.
type Engine struct {
	lock       *sync.RWMutex
	signers    map[uint32]ports.Signer
	orderings  map[uint32]uint32
	validators []ports.AddressValidator

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewEngine returns an engine with the given signers already registered,
// typically the one for the local key.
func NewEngine(signers ...ports.Signer) *Engine {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("wallet engine: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("wallet engine: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	e := &Engine{
		lock:      &sync.RWMutex{},
		signers:   make(map[uint32]ports.Signer),
		orderings: make(map[uint32]uint32),
		log:       logFn,
		warn:      warnFn,
	}
	for _, s := range signers {
		e.AddSigner(s.Fingerprint(), s.Ordering(), s)
	}
	return e
}

// AddSigner registers the signer for the key with the given fingerprint,
// replacing any previous one.
func (e *Engine) AddSigner(
	fingerprint uint32, ordering uint32, signer ports.Signer,
) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.signers[fingerprint] = signer
	e.orderings[fingerprint] = ordering
	e.log("added signer for fingerprint %08x with ordering %d", fingerprint, ordering)
}

// RemoveSigner drops the signer for the key with the given fingerprint, if
// any.
func (e *Engine) RemoveSigner(fingerprint uint32) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if _, ok := e.signers[fingerprint]; !ok {
		return
	}
	delete(e.signers, fingerprint)
	delete(e.orderings, fingerprint)
	e.log("removed signer for fingerprint %08x", fingerprint)
}

// AddAddressValidator registers the validator, unless already registered.
func (e *Engine) AddAddressValidator(validator ports.AddressValidator) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, v := range e.validators {
		if v == validator {
			return
		}
	}
	e.validators = append(e.validators, validator)
}

func (e *Engine) RemoveAddressValidator(validator ports.AddressValidator) {
	e.lock.Lock()
	defer e.lock.Unlock()

	validators := make([]ports.AddressValidator, 0, len(e.validators))
	for _, v := range e.validators {
		if v != validator {
			validators = append(validators, v)
		}
	}
	e.validators = validators
}

// SignPacket asks every signer whose key is referenced by an input to sign
// it, in ascending ordering. A failing input doesn't prevent the others to
// be signed. The returned error joins the failures of every input.
func (e *Engine) SignPacket(packet *psbt.Packet) error {
	if packet == nil || packet.UnsignedTx == nil {
		return ErrMissingPacket
	}

	errs := make([]error, 0)
	for i := range packet.Inputs {
		for _, signer := range e.signersFor(packet.Inputs[i].Bip32Derivation) {
			if err := signer.SignInput(packet, i); err != nil {
				e.warn(err, "failed to sign input %d", i)
				errs = append(errs, fmt.Errorf("input %d: %w", i, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Finalize builds the final scripts of every input and returns the network
// serializable transaction.
func (e *Engine) Finalize(packet *psbt.Packet) (*wire.MsgTx, error) {
	if packet == nil || packet.UnsignedTx == nil {
		return nil, ErrMissingPacket
	}
	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, err
	}
	return psbt.Extract(packet)
}

// ValidateAddress runs the registered validators for the address with the
// given key-origin records and script. Validators rejecting the script as
// foreign are skipped, the address is accepted as soon as one of them
// accepts it.
func (e *Engine) ValidateAddress(
	derivations []*psbt.Bip32Derivation, script []byte,
) error {
	e.lock.RLock()
	validators := make([]ports.AddressValidator, len(e.validators))
	copy(validators, e.validators)
	e.lock.RUnlock()

	for _, v := range validators {
		err := v.Validate(derivations, script)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrInvalidScript) {
			return err
		}
	}
	return domain.ErrInvalidScript
}

func (e *Engine) signersFor(derivations []*psbt.Bip32Derivation) []ports.Signer {
	e.lock.RLock()
	defer e.lock.RUnlock()

	seen := make(map[uint32]struct{}, len(derivations))
	fingerprints := make([]uint32, 0, len(derivations))
	for _, d := range derivations {
		if d == nil {
			continue
		}
		if _, ok := seen[d.MasterKeyFingerprint]; ok {
			continue
		}
		if _, ok := e.signers[d.MasterKeyFingerprint]; ok {
			seen[d.MasterKeyFingerprint] = struct{}{}
			fingerprints = append(fingerprints, d.MasterKeyFingerprint)
		}
	}
	sort.SliceStable(fingerprints, func(i, j int) bool {
		return e.orderings[fingerprints[i]] < e.orderings[fingerprints[j]]
	})

	signers := make([]ports.Signer, 0, len(fingerprints))
	for _, fp := range fingerprints {
		signers = append(signers, e.signers[fp])
	}
	return signers
}
