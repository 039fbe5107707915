package multisig

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// ServiceKey is the root of trust of the remote cosigner for a given network:
// a compressed public key and its chain code, both hex encoded.
type ServiceKey struct {
	PubKey    string
	ChainCode string
}

func (k ServiceKey) validate() error {
	pubkey, err := hex.DecodeString(k.PubKey)
	if err != nil || len(pubkey) != btcec.PubKeyBytesLenCompressed {
		return ErrInvalidServicePub
	}
	if _, err := btcec.ParsePubKey(pubkey); err != nil {
		return ErrInvalidServicePub
	}
	chainCode, err := hex.DecodeString(k.ChainCode)
	if err != nil || len(chainCode) != 32 {
		return ErrInvalidChainCode
	}
	return nil
}

var defaultServiceKeys = map[string]ServiceKey{
	chaincfg.MainNetParams.Name: {
		PubKey:    "0322c5f5c9c4b9d1c3e22ca995e200d724c2d7d8b6953f7b38fddf9296053c961f",
		ChainCode: "e9a563d68686999af372a33157209c6860fe79197a4dafd9ec1dbaa49523351d",
	},
	chaincfg.TestNet3Params.Name: {
		PubKey:    "036307e560072ed6ce0aa5465534fb5c258a2ccfbc257f369e8e7a181b16d897b3",
		ChainCode: "b60befcc619bb1c212732770fe181f2f1aa824ab89f8aab49f2e13e3a56f0f04",
	},
}

// ServiceKeyRegistry maps networks to the service root keys. A registry
// starts with the well known mainnet and testnet keys; any of them can be
// replaced, and keys for other networks (ie. regtest) can be added.
type ServiceKeyRegistry struct {
	keys map[string]ServiceKey
}

// NewServiceKeyRegistry returns a registry populated with the default keys.
func NewServiceKeyRegistry() *ServiceKeyRegistry {
	keys := make(map[string]ServiceKey, len(defaultServiceKeys))
	for net, key := range defaultServiceKeys {
		keys[net] = key
	}
	return &ServiceKeyRegistry{keys}
}

// Override registers the given service key for the network with the given
// name, replacing any previous one.
func (r *ServiceKeyRegistry) Override(network string, key ServiceKey) error {
	if network == "" {
		return ErrMissingNetwork
	}
	if err := key.validate(); err != nil {
		return err
	}
	r.keys[network] = key
	return nil
}

// RootKey returns the service root extended public key for the given network.
func (r *ServiceKeyRegistry) RootKey(
	params *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	if params == nil {
		return nil, ErrMissingNetwork
	}
	key, ok := r.keys[params.Name]
	if !ok {
		return nil, ErrUnknownServiceKey
	}

	pubkey, _ := hex.DecodeString(key.PubKey)
	chainCode, _ := hex.DecodeString(key.ChainCode)
	parentFP := []byte{0x00, 0x00, 0x00, 0x00}

	return hdkeychain.NewExtendedKey(
		params.HDPublicKeyID[:], pubkey, chainCode, parentFP, 0, 0, false,
	), nil
}
