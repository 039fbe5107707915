package multisig_test

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	path "github.com/vulpemventures/green-cosigner/pkg/wallet/derivation-path"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

var (
	// BIP32 test vector 1.
	testSeed        = "000102030405060708090a0b0c0d0e0f"
	testFingerprint = "3442193e"
	testGaitPath    = []uint16{0x1234, 0xabcd, 0x0001}
	testnet         = &chaincfg.TestNet3Params
	regtest         = &chaincfg.RegressionNetParams
)

func newMasterKey(t *testing.T, params *chaincfg.Params) *hdkeychain.ExtendedKey {
	seed, _ := hex.DecodeString(testSeed)
	master, err := multisig.MasterKeyFromSeed(seed, params)
	require.NoError(t, err)
	return master
}

func syntheticServiceKey(t *testing.T) multisig.ServiceKey {
	seed, _ := hex.DecodeString("fffcf9f6f3f0edeae7e4e1dedbd8d5d2cfccc9c6c3c0bdbab7b4b1aeaba8a5a2")
	master, err := multisig.MasterKeyFromSeed(seed, regtest)
	require.NoError(t, err)
	pubkey, err := master.ECPubKey()
	require.NoError(t, err)
	return multisig.ServiceKey{
		PubKey:    hex.EncodeToString(pubkey.SerializeCompressed()),
		ChainCode: hex.EncodeToString(master.ChainCode()),
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	master := newMasterKey(t, &chaincfg.MainNetParams)
	fp, err := multisig.KeyFingerprint(master)
	require.NoError(t, err)
	require.Equal(t, testFingerprint, fp.String())
	require.Equal(t, fp, multisig.FingerprintFromUint32(fp.Uint32()))
}

func TestServiceKeyRegistry(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		registry := multisig.NewServiceKeyRegistry()

		mainnetRoot, err := registry.RootKey(&chaincfg.MainNetParams)
		require.NoError(t, err)
		require.Contains(t, mainnetRoot.String(), "xpub")
		require.False(t, mainnetRoot.IsPrivate())
		require.Zero(t, mainnetRoot.Depth())

		testnetRoot, err := registry.RootKey(testnet)
		require.NoError(t, err)
		require.Contains(t, testnetRoot.String(), "tpub")
		require.NotEqual(t, mainnetRoot.String(), testnetRoot.String())

		key := syntheticServiceKey(t)
		require.NoError(t, registry.Override(regtest.Name, key))
		regtestRoot, err := registry.RootKey(regtest)
		require.NoError(t, err)
		pubkey, err := regtestRoot.ECPubKey()
		require.NoError(t, err)
		require.Equal(t, key.PubKey, hex.EncodeToString(pubkey.SerializeCompressed()))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		registry := multisig.NewServiceKeyRegistry()

		root, err := registry.RootKey(regtest)
		require.ErrorIs(t, err, multisig.ErrUnknownServiceKey)
		require.Nil(t, root)

		_, err = registry.RootKey(nil)
		require.ErrorIs(t, err, multisig.ErrMissingNetwork)

		key := syntheticServiceKey(t)
		tests := []struct {
			network string
			key     multisig.ServiceKey
			err     error
		}{
			{"", key, multisig.ErrMissingNetwork},
			{regtest.Name, multisig.ServiceKey{PubKey: "00", ChainCode: key.ChainCode}, multisig.ErrInvalidServicePub},
			{regtest.Name, multisig.ServiceKey{PubKey: key.PubKey, ChainCode: "abcd"}, multisig.ErrInvalidChainCode},
		}
		for _, tt := range tests {
			err := registry.Override(tt.network, tt.key)
			require.ErrorIs(t, err, tt.err)
		}
	})
}

func TestDeriveServiceKey(t *testing.T) {
	t.Parallel()

	registry := multisig.NewServiceKeyRegistry()
	root, err := registry.RootKey(testnet)
	require.NoError(t, err)
	subaccount := uint16(7)

	tests := []struct {
		name         string
		subaccount   *uint16
		expectedPath path.DerivationPath
	}{
		{"primary", nil, path.DerivationPath{1, 0x1234, 0xabcd, 0x0001}},
		{"subaccount", &subaccount, path.DerivationPath{3, 0x1234, 0xabcd, 0x0001, 7}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, fp, err := multisig.DeriveServiceKey(root, testGaitPath, tt.subaccount)
			require.NoError(t, err)
			require.False(t, key.IsPrivate())

			again, fpAgain, err := multisig.DeriveServiceKey(root, testGaitPath, tt.subaccount)
			require.NoError(t, err)
			require.Equal(t, key.String(), again.String())
			require.Equal(t, fp, fpAgain)

			expected, err := multisig.DerivePublic(root, tt.expectedPath)
			require.NoError(t, err)
			require.Equal(t, expected.String(), key.String())
			require.Equal(t, uint8(len(tt.expectedPath)), key.Depth())

			expectedFP, err := multisig.KeyFingerprint(expected)
			require.NoError(t, err)
			require.Equal(t, expectedFP, fp)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, _, err := multisig.DeriveServiceKey(nil, testGaitPath, nil)
		require.ErrorIs(t, err, multisig.ErrMissingServiceKey)

		_, err = multisig.DerivePublic(
			root, path.DerivationPath{hdkeychain.HardenedKeyStart},
		)
		require.ErrorIs(t, err, multisig.ErrHardenedServicePath)
	})
}

func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	registry := multisig.NewServiceKeyRegistry()
	master := newMasterKey(t, testnet)
	subaccount := uint16(7)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name       string
			subaccount *uint16
			localPath  string
		}{
			{"primary", nil, "1"},
			{"subaccount", &subaccount, "3'/7'/1"},
		}

		for _, tt := range tests {
			desc, err := multisig.BuildSubaccountDescriptor(
				multisig.BuildSubaccountDescriptorArgs{
					Registry:   registry,
					Network:    testnet,
					MasterKey:  master,
					GaitPath:   testGaitPath,
					Subaccount: tt.subaccount,
				},
			)
			require.NoError(t, err, tt.name)

			root, _ := registry.RootKey(testnet)
			serviceKey, serviceFP, err := multisig.DeriveServiceKey(
				root, testGaitPath, tt.subaccount,
			)
			require.NoError(t, err)

			expected := fmt.Sprintf(
				"sh(wsh(multi(2,%s/*,%s/%s/*)))",
				serviceKey.String(), master.String(), tt.localPath,
			)
			require.Equal(t, expected, desc.Expression, tt.name)
			require.Equal(t, serviceKey.String(), desc.ServiceKey)
			require.Equal(t, serviceFP, desc.ServiceFingerprint)
			require.Equal(t, testFingerprint, desc.LocalFingerprint.String())
			require.Equal(t, tt.localPath, desc.LocalPath.RelativeString())

			again, err := multisig.BuildSubaccountDescriptor(
				multisig.BuildSubaccountDescriptorArgs{
					Registry:   registry,
					Network:    testnet,
					MasterKey:  master,
					GaitPath:   testGaitPath,
					Subaccount: tt.subaccount,
				},
			)
			require.NoError(t, err)
			require.Equal(t, desc, again)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		root, _ := registry.RootKey(testnet)
		xpub, _ := master.Neuter()

		tests := []struct {
			args multisig.NewDescriptorArgs
			err  error
		}{
			{multisig.NewDescriptorArgs{LocalKey: master}, multisig.ErrMissingServiceKey},
			{multisig.NewDescriptorArgs{ServiceKey: master, LocalKey: master}, multisig.ErrInvalidServiceKey},
			{multisig.NewDescriptorArgs{ServiceKey: root}, multisig.ErrMissingLocalKey},
			{multisig.NewDescriptorArgs{ServiceKey: root, LocalKey: xpub}, multisig.ErrInvalidLocalKey},
		}
		for _, tt := range tests {
			desc, err := multisig.NewDescriptor(tt.args)
			require.EqualError(t, err, tt.err.Error())
			require.Nil(t, desc)
		}

		_, err := multisig.BuildSubaccountDescriptor(
			multisig.BuildSubaccountDescriptorArgs{
				Registry:  registry,
				Network:   regtest,
				MasterKey: master,
			},
		)
		require.ErrorIs(t, err, multisig.ErrUnknownServiceKey)
	})
}

func TestDeriveAddress(t *testing.T) {
	t.Parallel()

	registry := multisig.NewServiceKeyRegistry()
	root, _ := registry.RootKey(testnet)
	master := newMasterKey(t, testnet)
	subaccount := uint16(7)
	serviceKey, serviceFP, err := multisig.DeriveServiceKey(root, testGaitPath, &subaccount)
	require.NoError(t, err)

	args := multisig.DeriveAddressArgs{
		ServiceKey: serviceKey,
		LocalKey:   master,
		Subaccount: &subaccount,
		Index:      42,
		Network:    testnet,
	}
	addr, err := multisig.DeriveAddress(args)
	require.NoError(t, err)

	decoded, err := btcutil.DecodeAddress(addr.Address, testnet)
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressScriptHash{}, decoded)
	require.Equal(t, btcutil.Hash160(addr.RedeemScript), decoded.ScriptAddress())

	require.Len(t, addr.Derivations, 2)
	require.Equal(t, serviceFP.Uint32(), addr.Derivations[0].MasterKeyFingerprint)
	require.Equal(t, []uint32{42}, addr.Derivations[0].Bip32Path)
	require.Equal(t, []uint32{
		hdkeychain.HardenedKeyStart + 3, hdkeychain.HardenedKeyStart + 7, 1, 42,
	}, addr.Derivations[1].Bip32Path)

	again, err := multisig.DeriveAddress(args)
	require.NoError(t, err)
	require.Equal(t, addr, again)

	args.Index = hdkeychain.HardenedKeyStart
	_, err = multisig.DeriveAddress(args)
	require.ErrorIs(t, err, multisig.ErrOutOfRangeIndex)
}

func TestSignLoginChallenge(t *testing.T) {
	t.Parallel()

	master := newMasterKey(t, testnet)
	challenge := "1234567890"

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		sigHex, err := multisig.SignLoginChallenge(master, challenge)
		require.NoError(t, err)

		buf, err := hex.DecodeString(sigHex)
		require.NoError(t, err)
		sig, err := ecdsa.ParseDERSignature(buf)
		require.NoError(t, err)

		loginKey, err := master.Derive(multisig.LoginKeyIndex)
		require.NoError(t, err)
		pubkey, err := loginKey.ECPubKey()
		require.NoError(t, err)
		require.True(t, sig.Verify(multisig.LoginChallengeHash(challenge), pubkey))
		require.False(t, sig.Verify(multisig.LoginChallengeHash("other"), pubkey))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := multisig.SignLoginChallenge(nil, challenge)
		require.ErrorIs(t, err, multisig.ErrMissingMasterKey)

		_, err = multisig.SignLoginChallenge(master, "")
		require.ErrorIs(t, err, multisig.ErrMissingChallenge)

		xpub, _ := master.Neuter()
		_, err = multisig.SignLoginChallenge(xpub, challenge)
		require.ErrorIs(t, err, multisig.ErrInvalidLocalKey)
	})
}

func TestMasterAddress(t *testing.T) {
	t.Parallel()

	master := newMasterKey(t, testnet)
	addr, err := multisig.MasterAddress(master, testnet)
	require.NoError(t, err)

	decoded, err := btcutil.DecodeAddress(addr, testnet)
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressPubKeyHash{}, decoded)

	pubkey, _ := master.ECPubKey()
	require.Equal(t, btcutil.Hash160(pubkey.SerializeCompressed()), decoded.ScriptAddress())
}
