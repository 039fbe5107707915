package domain

import (
	"encoding/hex"
	"fmt"
	"time"
)

// PrimaryAccount is the pointer of the account every user has by default.
const PrimaryAccount uint16 = 0

// Account is the persisted setup of a (sub)account co-signed by the service.
type Account struct {
	Pointer            uint16
	Name               string
	ServiceXpub        string
	ServiceFingerprint string
	ServicePath        string
	LocalPath          string
	CreatedAt          int64
}

type NewAccountArgs struct {
	Pointer            uint16
	Name               string
	ServiceXpub        string
	ServiceFingerprint string
	ServicePath        string
	LocalPath          string
}

func (a NewAccountArgs) validate() error {
	if a.ServiceXpub == "" {
		return ErrMissingServiceXpub
	}
	buf, err := hex.DecodeString(a.ServiceFingerprint)
	if err != nil || len(buf) != 4 {
		return ErrInvalidFingerprint
	}
	return nil
}

func NewAccount(args NewAccountArgs) (*Account, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	name := args.Name
	if name == "" {
		name = defaultAccountName(args.Pointer)
	}
	return &Account{
		Pointer:            args.Pointer,
		Name:               name,
		ServiceXpub:        args.ServiceXpub,
		ServiceFingerprint: args.ServiceFingerprint,
		ServicePath:        args.ServicePath,
		LocalPath:          args.LocalPath,
		CreatedAt:          time.Now().Unix(),
	}, nil
}

// Subaccount returns nil for the primary account, the pointer otherwise.
func (a *Account) Subaccount() *uint16 {
	return SubaccountPointer(a.Pointer)
}

func (a *Account) IsPrimary() bool {
	return a.Pointer == PrimaryAccount
}

// SubaccountPointer maps pointer 0 to the primary account (nil).
func SubaccountPointer(pointer uint16) *uint16 {
	if pointer == PrimaryAccount {
		return nil
	}
	p := pointer
	return &p
}

func defaultAccountName(pointer uint16) string {
	if pointer == PrimaryAccount {
		return "main"
	}
	return fmt.Sprintf("subaccount-%d", pointer)
}
