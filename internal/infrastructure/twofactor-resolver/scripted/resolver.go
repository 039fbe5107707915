package scripted_resolver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
)

var (
	ErrNoCodeLeft = fmt.Errorf("no 2FA code left")
)

// CodeSource produces a code on demand, eg. an external TOTP generator.
type CodeSource func(method domain.TwoFactorMethod) (string, error)

type ResolverArgs struct {
	// Preferences lists the methods to use, in order of preference. The first
	// enabled method is picked if none of them is enabled or the list is
	// empty.
	Preferences []domain.TwoFactorMethod
	// Codes are returned one per request, in order.
	Codes []string
	// Source, if defined, is used once the queued codes are exhausted.
	Source CodeSource
}

type resolver struct {
	preferences []domain.TwoFactorMethod
	source      CodeSource

	lock  *sync.Mutex
	codes []string
}

// NewResolver returns a non-interactive 2FA resolver.
func NewResolver(args ResolverArgs) ports.TwoFactorResolver {
	codes := make([]string, 0, len(args.Codes))
	for _, c := range args.Codes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return &resolver{
		preferences: args.Preferences,
		source:      args.Source,
		lock:        &sync.Mutex{},
		codes:       codes,
	}
}

func (r *resolver) ChooseMethod(
	enabled []domain.TwoFactorMethod,
) (domain.TwoFactorMethod, error) {
	if len(enabled) <= 0 {
		return "", domain.ErrTwoFactorMethodNotEnabled
	}
	for _, preferred := range r.preferences {
		for _, m := range enabled {
			if m == preferred {
				return m, nil
			}
		}
	}
	return enabled[0], nil
}

func (r *resolver) Code(method domain.TwoFactorMethod) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.codes) > 0 {
		code := r.codes[0]
		r.codes = r.codes[1:]
		return code, nil
	}
	if r.source != nil {
		return r.source(method)
	}
	return "", ErrNoCodeLeft
}
