package path

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// PrimaryAccountBranch roots the service path of the default account.
	PrimaryAccountBranch uint32 = 1
	// SubaccountBranch roots the service path of every numbered subaccount,
	// and is also the first (hardened) step of the local subaccount path.
	SubaccountBranch uint32 = 3
	// ExternalBranch is the local branch under which per-address keys live.
	ExternalBranch uint32 = 1
)

// DerivationPath is the data structure representing an HD path.
type DerivationPath []uint32

// ParseDerivationPath converts a derivation path in string format to a
// DerivationPath type. Both absolute (m/...) and relative paths are accepted.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	if strPath == "" {
		return nil, ErrMissingDerivationPath
	}

	elems := strings.Split(strPath, "/")
	if containsEmptyString(elems) {
		return nil, ErrMalformedDerivationPath
	}
	if strings.TrimSpace(elems[0]) == "m" {
		elems = elems[1:]
	}
	if len(elems) == 0 {
		return nil, ErrMalformedDerivationPath
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		// use big int for convertion
		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("invalid elem '%s' in path", elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// NewServicePath returns the path, relative to the service root key, at which
// the service key of an account lives:
//   - primary account: 1/<gait path>
//   - subaccount:      3/<gait path>/<pointer>
func NewServicePath(gaitPath []uint16, subaccount *uint16) DerivationPath {
	path := make(DerivationPath, 0, len(gaitPath)+2)
	if subaccount == nil {
		path = append(path, PrimaryAccountBranch)
	} else {
		path = append(path, SubaccountBranch)
	}
	for _, step := range gaitPath {
		path = append(path, uint32(step))
	}
	if subaccount != nil {
		path = append(path, uint32(*subaccount))
	}
	return path
}

// NewLocalRelativePath returns the path, relative to the local root key, of
// the branch whose children are the per-address local keys:
//   - primary account: 1
//   - subaccount:      3'/<pointer>'/1
func NewLocalRelativePath(subaccount *uint16) DerivationPath {
	if subaccount == nil {
		return DerivationPath{ExternalBranch}
	}
	return DerivationPath{
		hdkeychain.HardenedKeyStart + SubaccountBranch,
		hdkeychain.HardenedKeyStart + uint32(*subaccount),
		ExternalBranch,
	}
}

// IsNonHardened returns whether every step of the path can be derived from a
// public key alone.
func (path DerivationPath) IsNonHardened() bool {
	for _, step := range path {
		if step >= hdkeychain.HardenedKeyStart {
			return false
		}
	}
	return true
}

func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}
	return "m/" + path.RelativeString()
}

// RelativeString returns the path without the leading "m/", in the form used
// inside output descriptors (ie. 3'/7'/1).
func (path DerivationPath) RelativeString() string {
	elems := make([]string, 0, len(path))
	for _, component := range path {
		if component >= hdkeychain.HardenedKeyStart {
			elems = append(
				elems, fmt.Sprintf("%d'", component-hdkeychain.HardenedKeyStart),
			)
			continue
		}
		elems = append(elems, fmt.Sprintf("%d", component))
	}
	return strings.Join(elems, "/")
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
