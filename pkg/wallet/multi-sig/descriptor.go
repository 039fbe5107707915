package multisig

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	path "github.com/vulpemventures/green-cosigner/pkg/wallet/derivation-path"
)

// RequiredSignatures is the threshold of the multisig, which is also the
// number of cosigners.
const RequiredSignatures = 2

// Descriptor is the 2-of-2 P2SH-P2WSH output descriptor of an account,
// together with the metadata needed to recognize the service key slot inside
// a PSBT.
type Descriptor struct {
	Expression         string
	ServiceKey         string
	ServiceFingerprint Fingerprint
	LocalFingerprint   Fingerprint
	LocalPath          path.DerivationPath
	// ServicePath is set only when the descriptor is built from the service
	// root key.
	ServicePath path.DerivationPath
}

type NewDescriptorArgs struct {
	ServiceKey *hdkeychain.ExtendedKey
	LocalKey   *hdkeychain.ExtendedKey
	Subaccount *uint16
}

func (a NewDescriptorArgs) validate() error {
	if a.ServiceKey == nil {
		return ErrMissingServiceKey
	}
	if a.ServiceKey.IsPrivate() {
		return ErrInvalidServiceKey
	}
	if a.LocalKey == nil {
		return ErrMissingLocalKey
	}
	if !a.LocalKey.IsPrivate() {
		return ErrInvalidLocalKey
	}
	return nil
}

// NewDescriptor composes the account descriptor:
//
//	sh(wsh(multi(2,<service xpub>/*,<local xprv>/<local path>/*)))
//
// The service key always comes first, the remote cosigner computes its own
// copy of the script with the same key order.
func NewDescriptor(args NewDescriptorArgs) (*Descriptor, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	serviceFP, err := KeyFingerprint(args.ServiceKey)
	if err != nil {
		return nil, err
	}
	localFP, err := KeyFingerprint(args.LocalKey)
	if err != nil {
		return nil, err
	}

	localPath := path.NewLocalRelativePath(args.Subaccount)
	serviceXpub := args.ServiceKey.String()
	expression := fmt.Sprintf(
		"sh(wsh(multi(%d,%s/*,%s/%s/*)))",
		RequiredSignatures, serviceXpub, args.LocalKey.String(),
		localPath.RelativeString(),
	)

	return &Descriptor{
		Expression:         expression,
		ServiceKey:         serviceXpub,
		ServiceFingerprint: serviceFP,
		LocalFingerprint:   localFP,
		LocalPath:          localPath,
	}, nil
}

type BuildSubaccountDescriptorArgs struct {
	Registry   *ServiceKeyRegistry
	Network    *chaincfg.Params
	MasterKey  *hdkeychain.ExtendedKey
	GaitPath   []uint16
	Subaccount *uint16
}

func (a BuildSubaccountDescriptorArgs) validate() error {
	if a.Registry == nil {
		return ErrUnknownServiceKey
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.MasterKey == nil {
		return ErrMissingMasterKey
	}
	return nil
}

// BuildSubaccountDescriptor derives the service key of the account and
// composes its descriptor in one go.
func BuildSubaccountDescriptor(
	args BuildSubaccountDescriptorArgs,
) (*Descriptor, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	root, err := args.Registry.RootKey(args.Network)
	if err != nil {
		return nil, err
	}
	serviceKey, _, err := DeriveServiceKey(root, args.GaitPath, args.Subaccount)
	if err != nil {
		return nil, err
	}

	descriptor, err := NewDescriptor(NewDescriptorArgs{
		ServiceKey: serviceKey,
		LocalKey:   args.MasterKey,
		Subaccount: args.Subaccount,
	})
	if err != nil {
		return nil, err
	}
	descriptor.ServicePath = path.NewServicePath(args.GaitPath, args.Subaccount)
	return descriptor, nil
}

// MultisigAddress holds the scripts of a single address of an account and the
// key-origin records of its two public keys.
type MultisigAddress struct {
	Address       string
	ScriptPubKey  []byte
	RedeemScript  []byte
	WitnessScript []byte
	Derivations   []*psbt.Bip32Derivation
}

type DeriveAddressArgs struct {
	ServiceKey *hdkeychain.ExtendedKey
	LocalKey   *hdkeychain.ExtendedKey
	Subaccount *uint16
	Index      uint32
	Network    *chaincfg.Params
}

func (a DeriveAddressArgs) validate() error {
	if err := (NewDescriptorArgs{a.ServiceKey, a.LocalKey, a.Subaccount}).validate(); err != nil {
		return err
	}
	if a.Index >= hdkeychain.HardenedKeyStart {
		return ErrOutOfRangeIndex
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	return nil
}

// DeriveAddress expands the account descriptor at the given index. The
// service key origin is expressed relative to the derived service key, so
// that the first step of its path is the address index.
func DeriveAddress(args DeriveAddressArgs) (*MultisigAddress, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	serviceFP, err := KeyFingerprint(args.ServiceKey)
	if err != nil {
		return nil, err
	}
	localFP, err := KeyFingerprint(args.LocalKey)
	if err != nil {
		return nil, err
	}

	servicePath := path.DerivationPath{args.Index}
	serviceNode, err := DerivePublic(args.ServiceKey, servicePath)
	if err != nil {
		return nil, err
	}
	servicePubkey, err := serviceNode.ECPubKey()
	if err != nil {
		return nil, err
	}

	localPath := append(path.NewLocalRelativePath(args.Subaccount), args.Index)
	localNode := args.LocalKey
	for _, step := range localPath {
		localNode, err = localNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	localPubkey, err := localNode.ECPubKey()
	if err != nil {
		return nil, err
	}

	serviceAddrPubkey, err := btcutil.NewAddressPubKey(
		servicePubkey.SerializeCompressed(), args.Network,
	)
	if err != nil {
		return nil, err
	}
	localAddrPubkey, err := btcutil.NewAddressPubKey(
		localPubkey.SerializeCompressed(), args.Network,
	)
	if err != nil {
		return nil, err
	}

	witnessScript, err := txscript.MultiSigScript(
		[]*btcutil.AddressPubKey{serviceAddrPubkey, localAddrPubkey},
		RequiredSignatures,
	)
	if err != nil {
		return nil, err
	}
	witnessProgram := sha256.Sum256(witnessScript)
	redeemScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(witnessProgram[:]).Script()
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressScriptHash(redeemScript, args.Network)
	if err != nil {
		return nil, err
	}
	scriptPubKey, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &MultisigAddress{
		Address:       addr.EncodeAddress(),
		ScriptPubKey:  scriptPubKey,
		RedeemScript:  redeemScript,
		WitnessScript: witnessScript,
		Derivations: []*psbt.Bip32Derivation{
			{
				PubKey:               servicePubkey.SerializeCompressed(),
				MasterKeyFingerprint: serviceFP.Uint32(),
				Bip32Path:            servicePath,
			},
			{
				PubKey:               localPubkey.SerializeCompressed(),
				MasterKeyFingerprint: localFP.Uint32(),
				Bip32Path:            localPath,
			},
		},
	}, nil
}
