package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Limits are the spending limits configured for the account. Amounts are
// in satoshis unless IsFiat is set, in which case they are in cents.
type Limits struct {
	IsFiat bool   `json:"is_fiat"`
	PerTx  uint64 `json:"per_tx"`
	Total  uint64 `json:"total"`
}

// SubaccountInfo describes a subaccount the service knows about.
type SubaccountInfo struct {
	HasTxs  bool   `json:"has_txs"`
	Name    string `json:"name"`
	Pointer uint16 `json:"pointer"`
}

// LoginData is the outcome of a successful authentication.
type LoginData struct {
	GaitPath                []uint16
	EarliestKeyCreationTime uint64
	Limits                  *Limits
	Subaccounts             []SubaccountInfo
}

func (d *LoginData) UnmarshalJSON(buf []byte) error {
	var raw struct {
		GaitPath                *string          `json:"gait_path"`
		EarliestKeyCreationTime uint64           `json:"earliest_key_creation_time"`
		Limits                  *Limits          `json:"limits"`
		Subaccounts             []SubaccountInfo `json:"subaccounts"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}
	if raw.GaitPath == nil {
		return fmt.Errorf("missing gait_path")
	}
	gaitPath, err := DecodeGaitPath(*raw.GaitPath)
	if err != nil {
		return err
	}

	*d = LoginData{
		GaitPath:                gaitPath,
		EarliestKeyCreationTime: raw.EarliestKeyCreationTime,
		Limits:                  raw.Limits,
		Subaccounts:             raw.Subaccounts,
	}
	return nil
}

// Subaccount returns the info of the subaccount with the given pointer.
func (d *LoginData) Subaccount(pointer uint16) (*SubaccountInfo, bool) {
	for i := range d.Subaccounts {
		if d.Subaccounts[i].Pointer == pointer {
			return &d.Subaccounts[i], true
		}
	}
	return nil, false
}

// DecodeGaitPath turns the hex string returned at login into the account
// path, reading it as a sequence of big-endian 16-bit words.
func DecodeGaitPath(str string) ([]uint16, error) {
	buf, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid gait path: %w", err)
	}
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("invalid gait path: odd number of bytes")
	}

	path := make([]uint16, 0, len(buf)/2)
	for i := 0; i < len(buf); i += 2 {
		path = append(path, uint16(buf[i])<<8|uint16(buf[i+1]))
	}
	return path, nil
}

// SignedTransaction is the response of a co-signing request.
type SignedTransaction struct {
	NewLimit *Limits `json:"new_limit"`
	Tx       string  `json:"tx"`
}
