package application_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

var (
	regtest      = &chaincfg.RegressionNetParams
	testSeed     = "000102030405060708090a0b0c0d0e0f"
	serviceSeed  = "fffcf9f6f3f0edeae7e4e1dedbd8d5d2cfccc9c6c3c0bdbab7b4b1aeaba8a5a2"
	testGaitPath = []uint16{0x1234, 0xabcd}
	testCode     = "123456"
)

type fixture struct {
	registry    *multisig.ServiceKeyRegistry
	masterKey   *hdkeychain.ExtendedKey
	serviceKey  *hdkeychain.ExtendedKey
	fingerprint multisig.Fingerprint
	addresses   []*multisig.MultisigAddress
}

func newFixture(t *testing.T, subaccount *uint16) *fixture {
	seed, _ := hex.DecodeString(testSeed)
	masterKey, err := multisig.MasterKeyFromSeed(seed, regtest)
	require.NoError(t, err)

	seed, _ = hex.DecodeString(serviceSeed)
	serviceMaster, err := multisig.MasterKeyFromSeed(seed, regtest)
	require.NoError(t, err)
	servicePubkey, err := serviceMaster.ECPubKey()
	require.NoError(t, err)

	registry := multisig.NewServiceKeyRegistry()
	err = registry.Override(regtest.Name, multisig.ServiceKey{
		PubKey:    hex.EncodeToString(servicePubkey.SerializeCompressed()),
		ChainCode: hex.EncodeToString(serviceMaster.ChainCode()),
	})
	require.NoError(t, err)

	root, err := registry.RootKey(regtest)
	require.NoError(t, err)
	serviceKey, fp, err := multisig.DeriveServiceKey(root, testGaitPath, subaccount)
	require.NoError(t, err)

	addresses := make([]*multisig.MultisigAddress, 0, 3)
	for i := uint32(0); i < 3; i++ {
		addr, err := multisig.DeriveAddress(multisig.DeriveAddressArgs{
			ServiceKey: serviceKey,
			LocalKey:   masterKey,
			Subaccount: subaccount,
			Index:      i,
			Network:    regtest,
		})
		require.NoError(t, err)
		addresses = append(addresses, addr)
	}

	return &fixture{registry, masterKey, serviceKey, fp, addresses}
}

func (f *fixture) loginData() *domain.LoginData {
	return &domain.LoginData{
		GaitPath: testGaitPath,
		Subaccounts: []domain.SubaccountInfo{
			{HasTxs: true, Name: "savings", Pointer: 7},
		},
	}
}

func (f *fixture) serviceDerivation(
	derivations []*psbt.Bip32Derivation,
) *psbt.Bip32Derivation {
	for _, d := range derivations {
		if d.MasterKeyFingerprint == f.fingerprint.Uint32() {
			return d
		}
	}
	return nil
}

func (f *fixture) localDerivation(
	derivations []*psbt.Bip32Derivation,
) *psbt.Bip32Derivation {
	for _, d := range derivations {
		if d.MasterKeyFingerprint != f.fingerprint.Uint32() {
			return d
		}
	}
	return nil
}

func localSig(i int) []byte {
	return []byte{0x30, 0x44, 0x01, byte(i)}
}

func serviceSig(i int) []byte {
	return []byte{0x30, 0x44, 0x02, byte(i)}
}

// newPacket returns a psbt spending one output of each of the fixture's
// addresses, every input already signed by the local key.
func (f *fixture) newPacket(t *testing.T) *psbt.Packet {
	outpoints := make([]*wire.OutPoint, 0, len(f.addresses))
	for i := range f.addresses {
		hash := chainhash.DoubleHashH([]byte{byte(i)})
		outpoints = append(outpoints, wire.NewOutPoint(&hash, uint32(i)))
	}
	outputs := []*wire.TxOut{
		wire.NewTxOut(100000, f.addresses[0].ScriptPubKey),
	}
	sequences := make([]uint32, len(outpoints))
	for i := range sequences {
		sequences[i] = wire.MaxTxInSequenceNum
	}

	packet, err := psbt.New(outpoints, outputs, 2, 0, sequences)
	require.NoError(t, err)

	for i, addr := range f.addresses {
		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(200000, addr.ScriptPubKey)
		packet.Inputs[i].RedeemScript = addr.RedeemScript
		packet.Inputs[i].WitnessScript = addr.WitnessScript
		packet.Inputs[i].Bip32Derivation = addr.Derivations
		packet.Inputs[i].PartialSigs = []*psbt.PartialSig{{
			PubKey:    f.localDerivation(addr.Derivations).PubKey,
			Signature: localSig(i),
		}}
	}
	return packet
}

// signedTx returns the tx the service would reply with for the given packet.
func (f *fixture) signedTx(t *testing.T, packet *psbt.Packet) string {
	tx := packet.UnsignedTx.Copy()
	for i := range tx.TxIn {
		tx.TxIn[i].Witness = wire.TxWitness{
			localSig(i), serviceSig(i), f.addresses[i].WitnessScript,
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, tx.Serialize(buf))
	return hex.EncodeToString(buf.Bytes())
}
