package domain

import (
	"encoding/json"
	"strings"
)

// TwoFactorMethod is one of the 2FA channels supported by the service. Its
// string form is the lower-case name used in RPC procedure names.
type TwoFactorMethod string

const (
	TwoFactorEmail TwoFactorMethod = "email"
	TwoFactorGauth TwoFactorMethod = "gauth"
	TwoFactorPhone TwoFactorMethod = "phone"
	TwoFactorSms   TwoFactorMethod = "sms"
)

// TwoFactorMethods lists every supported method in the order they are
// proposed to the user.
var TwoFactorMethods = []TwoFactorMethod{
	TwoFactorEmail, TwoFactorGauth, TwoFactorPhone, TwoFactorSms,
}

// ParseTwoFactorMethod converts a user or wire provided string into a
// TwoFactorMethod, ignoring case and surrounding spaces.
func ParseTwoFactorMethod(s string) (TwoFactorMethod, error) {
	m := TwoFactorMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, method := range TwoFactorMethods {
		if m == method {
			return m, nil
		}
	}
	return "", ErrUnknownTwoFactorMethod
}

func (m TwoFactorMethod) String() string {
	return string(m)
}

// RequiresDispatch returns whether the service must send the code out of
// band before it can be typed. Authenticator app codes are generated locally.
func (m TwoFactorMethod) RequiresDispatch() bool {
	return m != TwoFactorGauth
}

// TwoFactorConfig is the 2FA setup of the account as reported by the service.
type TwoFactorConfig struct {
	Methods        map[TwoFactorMethod]bool
	Any            bool
	EmailAddr      string
	EmailConfirmed bool
	PhoneNumber    string
}

// Enabled returns the enabled methods in the canonical order.
func (c *TwoFactorConfig) Enabled() []TwoFactorMethod {
	enabled := make([]TwoFactorMethod, 0, len(TwoFactorMethods))
	for _, m := range TwoFactorMethods {
		if c.Methods[m] {
			enabled = append(enabled, m)
		}
	}
	return enabled
}

func (c *TwoFactorConfig) IsEnabled(method TwoFactorMethod) bool {
	return c.Methods[method]
}

// UnmarshalJSON accepts both the flat layout returned by the service, where
// every method is a top level boolean, and a nested "methods" object.
func (c *TwoFactorConfig) UnmarshalJSON(buf []byte) error {
	var raw struct {
		Methods        map[string]bool `json:"methods"`
		Any            *bool           `json:"any"`
		Email          bool            `json:"email"`
		Gauth          bool            `json:"gauth"`
		Phone          bool            `json:"phone"`
		Sms            bool            `json:"sms"`
		EmailAddr      *string         `json:"email_addr"`
		EmailConfirmed bool            `json:"email_confirmed"`
		PhoneNumber    *string         `json:"phone_number"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	methods := map[TwoFactorMethod]bool{
		TwoFactorEmail: raw.Email,
		TwoFactorGauth: raw.Gauth,
		TwoFactorPhone: raw.Phone,
		TwoFactorSms:   raw.Sms,
	}
	for name, enabled := range raw.Methods {
		method, err := ParseTwoFactorMethod(name)
		if err != nil {
			continue
		}
		methods[method] = enabled
	}

	config := TwoFactorConfig{
		Methods:        methods,
		EmailConfirmed: raw.EmailConfirmed,
	}
	if raw.EmailAddr != nil {
		config.EmailAddr = *raw.EmailAddr
	}
	if raw.PhoneNumber != nil {
		config.PhoneNumber = *raw.PhoneNumber
	}
	if raw.Any != nil {
		config.Any = *raw.Any
	} else {
		config.Any = len(config.Enabled()) > 0
	}

	*c = config
	return nil
}

// TwoFactorData is the 2FA proof sent along with a request that needs the
// service's authorization.
type TwoFactorData struct {
	Method TwoFactorMethod `json:"method"`
	Code   string          `json:"code"`
}
