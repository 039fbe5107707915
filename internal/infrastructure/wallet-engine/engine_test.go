package wallet_engine_test

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	wallet_engine "github.com/vulpemventures/green-cosigner/internal/infrastructure/wallet-engine"
	path "github.com/vulpemventures/green-cosigner/pkg/wallet/derivation-path"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
	singlesig "github.com/vulpemventures/green-cosigner/pkg/wallet/single-sig"
)

var (
	regtest      = &chaincfg.RegressionNetParams
	testSeed     = "000102030405060708090a0b0c0d0e0f"
	serviceSeed  = "fffcf9f6f3f0edeae7e4e1dedbd8d5d2cfccc9c6c3c0bdbab7b4b1aeaba8a5a2"
	testGaitPath = []uint16{0x1234, 0xabcd}
	inputValue   = int64(150000)
)

type fixture struct {
	masterKey  *hdkeychain.ExtendedKey
	serviceKey *hdkeychain.ExtendedKey
	addresses  []*multisig.MultisigAddress
}

func newFixture(t *testing.T) *fixture {
	seed, _ := hex.DecodeString(testSeed)
	masterKey, err := multisig.MasterKeyFromSeed(seed, regtest)
	require.NoError(t, err)

	seed, _ = hex.DecodeString(serviceSeed)
	serviceKey, err := multisig.MasterKeyFromSeed(seed, regtest)
	require.NoError(t, err)
	for _, step := range path.NewServicePath(testGaitPath, nil) {
		serviceKey, err = serviceKey.Derive(step)
		require.NoError(t, err)
	}
	servicePubKey, err := serviceKey.Neuter()
	require.NoError(t, err)

	addresses := make([]*multisig.MultisigAddress, 0, 3)
	for i := uint32(0); i < 3; i++ {
		addr, err := multisig.DeriveAddress(multisig.DeriveAddressArgs{
			ServiceKey: servicePubKey,
			LocalKey:   masterKey,
			Index:      i,
			Network:    regtest,
		})
		require.NoError(t, err)
		addresses = append(addresses, addr)
	}
	return &fixture{masterKey, serviceKey, addresses}
}

func (f *fixture) newPacket(t *testing.T) *psbt.Packet {
	outpoints := make([]*wire.OutPoint, 0, len(f.addresses))
	sequences := make([]uint32, 0, len(f.addresses))
	for i := range f.addresses {
		hash := chainhash.DoubleHashH([]byte{byte(i), 0xee})
		outpoints = append(outpoints, wire.NewOutPoint(&hash, 1))
		sequences = append(sequences, wire.MaxTxInSequenceNum)
	}
	outputs := []*wire.TxOut{wire.NewTxOut(400000, f.addresses[2].ScriptPubKey)}

	packet, err := psbt.New(outpoints, outputs, 2, 0, sequences)
	require.NoError(t, err)
	for i, addr := range f.addresses {
		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(inputValue, addr.ScriptPubKey)
		packet.Inputs[i].RedeemScript = addr.RedeemScript
		packet.Inputs[i].WitnessScript = addr.WitnessScript
		packet.Inputs[i].Bip32Derivation = addr.Derivations
	}
	return packet
}

func (f *fixture) signers(t *testing.T) (*singlesig.Signer, *singlesig.Signer) {
	local, err := singlesig.NewSigner(singlesig.NewSignerArgs{
		MasterKey: f.masterKey,
	})
	require.NoError(t, err)
	service, err := singlesig.NewSigner(singlesig.NewSignerArgs{
		MasterKey: f.serviceKey,
		Ordering:  200,
	})
	require.NoError(t, err)
	return local, service
}

func TestSignPacket(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		local, service := f.signers(t)
		engine := wallet_engine.NewEngine(local)
		engine.AddSigner(service.Fingerprint(), service.Ordering(), service)

		packet := f.newPacket(t)
		require.NoError(t, engine.SignPacket(packet))
		for _, in := range packet.Inputs {
			require.Len(t, in.PartialSigs, 2)
		}

		tx, err := engine.Finalize(packet)
		require.NoError(t, err)

		prevOutFetcher := singlesig.PrevOutFetcher(packet)
		sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
		for i, addr := range f.addresses {
			vm, err := txscript.NewEngine(
				addr.ScriptPubKey, tx, i, txscript.StandardVerifyFlags, nil,
				sigHashes, inputValue, prevOutFetcher,
			)
			require.NoError(t, err)
			require.NoError(t, vm.Execute())
		}
	})

	t.Run("ordering", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		local, _ := f.signers(t)
		serviceFP := f.addresses[0].Derivations[0].MasterKeyFingerprint

		calls := make([]string, 0)
		first := &mockSigner{}
		first.On("SignInput", mock.Anything, 0).Run(func(mock.Arguments) {
			calls = append(calls, "first")
		}).Return(nil)
		second := &mockSigner{}
		second.On("SignInput", mock.Anything, 0).Run(func(mock.Arguments) {
			calls = append(calls, "second")
		}).Return(nil)

		engine := wallet_engine.NewEngine()
		engine.AddSigner(serviceFP, 1, first)
		engine.AddSigner(local.Fingerprint(), 2, second)

		packet := f.newPacket(t)
		packet.Inputs = packet.Inputs[:1]
		packet.UnsignedTx.TxIn = packet.UnsignedTx.TxIn[:1]

		require.NoError(t, engine.SignPacket(packet))
		require.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("failing input", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		local, _ := f.signers(t)
		serviceFP := f.addresses[0].Derivations[0].MasterKeyFingerprint

		cosigner := &mockSigner{}
		cosigner.On("SignInput", mock.Anything, 1).Return(domain.ErrUserCanceled)
		cosigner.On("SignInput", mock.Anything, mock.Anything).Return(nil)

		engine := wallet_engine.NewEngine(local)
		engine.AddSigner(serviceFP, 200, cosigner)

		packet := f.newPacket(t)
		err := engine.SignPacket(packet)
		require.ErrorIs(t, err, domain.ErrUserCanceled)
		require.Contains(t, err.Error(), "input 1")

		// Other inputs are signed anyway.
		for _, in := range packet.Inputs {
			require.Len(t, in.PartialSigs, 1)
		}
		cosigner.AssertNumberOfCalls(t, "SignInput", 3)
	})

	t.Run("repeated key origin", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		serviceFP := f.addresses[0].Derivations[0].MasterKeyFingerprint

		cosigner := &mockSigner{}
		cosigner.On("SignInput", mock.Anything, 0).Return(nil)

		engine := wallet_engine.NewEngine()
		engine.AddSigner(serviceFP, 200, cosigner)

		packet := f.newPacket(t)
		packet.Inputs = packet.Inputs[:1]
		packet.UnsignedTx.TxIn = packet.UnsignedTx.TxIn[:1]
		derivation := *packet.Inputs[0].Bip32Derivation[0]
		derivation.Bip32Path = []uint32{1}
		packet.Inputs[0].Bip32Derivation = append(
			packet.Inputs[0].Bip32Derivation, &derivation,
		)

		require.NoError(t, engine.SignPacket(packet))
		cosigner.AssertNumberOfCalls(t, "SignInput", 1)
	})

	t.Run("removed signer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		serviceFP := f.addresses[0].Derivations[0].MasterKeyFingerprint

		cosigner := &mockSigner{}
		engine := wallet_engine.NewEngine()
		engine.AddSigner(serviceFP, 200, cosigner)
		engine.RemoveSigner(serviceFP)
		engine.RemoveSigner(serviceFP)

		require.NoError(t, engine.SignPacket(f.newPacket(t)))
		cosigner.AssertNotCalled(t, "SignInput", mock.Anything, mock.Anything)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		engine := wallet_engine.NewEngine()
		require.ErrorIs(t, engine.SignPacket(nil), wallet_engine.ErrMissingPacket)

		tx, err := engine.Finalize(nil)
		require.ErrorIs(t, err, wallet_engine.ErrMissingPacket)
		require.Nil(t, tx)

		f := newFixture(t)
		tx, err = engine.Finalize(f.newPacket(t))
		require.Error(t, err)
		require.Nil(t, tx)
	})
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	derivations := []*psbt.Bip32Derivation{{MasterKeyFingerprint: 1}}
	script := []byte{0xa9}

	tests := []struct {
		name      string
		results   []error
		expectErr error
	}{
		{"no validators", nil, domain.ErrInvalidScript},
		{"accepted", []error{nil}, nil},
		{"accepted by second", []error{domain.ErrInvalidScript, nil}, nil},
		{
			"all foreign",
			[]error{domain.ErrInvalidScript, domain.ErrInvalidScript},
			domain.ErrInvalidScript,
		},
		{
			"timeout",
			[]error{
				domain.ErrInvalidScript,
				fmt.Errorf("%w: index 3", domain.ErrFundingTimeout),
				nil,
			},
			domain.ErrFundingTimeout,
		},
	}

	for _, tt := range tests {
		engine := wallet_engine.NewEngine()
		for _, res := range tt.results {
			v := &mockValidator{}
			v.On("Validate", derivations, script).Return(res)
			engine.AddAddressValidator(v)
		}

		err := engine.ValidateAddress(derivations, script)
		if tt.expectErr == nil {
			require.NoError(t, err, tt.name)
			continue
		}
		require.ErrorIs(t, err, tt.expectErr, tt.name)
	}
}

func TestRemoveAddressValidator(t *testing.T) {
	t.Parallel()

	derivations := []*psbt.Bip32Derivation{{MasterKeyFingerprint: 1}}
	script := []byte{0xa9}

	first := &mockValidator{}
	first.On("Validate", derivations, script).Return(nil)
	second := &mockValidator{}
	second.On("Validate", derivations, script).Return(domain.ErrInvalidScript)

	engine := wallet_engine.NewEngine()
	engine.AddAddressValidator(first)
	engine.AddAddressValidator(first)
	engine.AddAddressValidator(second)
	require.NoError(t, engine.ValidateAddress(derivations, script))
	first.AssertNumberOfCalls(t, "Validate", 1)

	engine.RemoveAddressValidator(first)
	err := engine.ValidateAddress(derivations, script)
	require.ErrorIs(t, err, domain.ErrInvalidScript)
	first.AssertNumberOfCalls(t, "Validate", 1)
	second.AssertNumberOfCalls(t, "Validate", 1)
}
