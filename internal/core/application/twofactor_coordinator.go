package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
)

// TwoFactorCoordinator produces the 2FA proofs required by the remote
// cosigner. The account's 2FA config is fetched at most once per session,
// while method and code are asked to the resolver every time a proof is
// needed.
type TwoFactorCoordinator struct {
	session  ports.RemoteSession
	resolver ports.TwoFactorResolver

	lock   sync.Mutex
	config *domain.TwoFactorConfig

	log func(format string, a ...interface{})
}

func NewTwoFactorCoordinator(
	session ports.RemoteSession, resolver ports.TwoFactorResolver,
) (*TwoFactorCoordinator, error) {
	if session == nil {
		return nil, ErrMissingSession
	}
	if resolver == nil {
		return nil, ErrMissingResolver
	}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("2fa coordinator: %s", format)
		log.Debugf(format, a...)
	}
	return &TwoFactorCoordinator{
		session:  session,
		resolver: resolver,
		log:      logFn,
	}, nil
}

// Config returns the cached 2FA config, fetching it on first use.
func (c *TwoFactorCoordinator) Config(
	ctx context.Context,
) (*domain.TwoFactorConfig, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.config != nil {
		return c.config, nil
	}

	config, err := c.session.GetTwoFactorConfig(ctx)
	if err != nil {
		return nil, err
	}
	c.config = config
	c.log("cached config with enabled methods %v", config.Enabled())
	return c.config, nil
}

// ChooseMethod asks the resolver to pick one of the given enabled methods.
func (c *TwoFactorCoordinator) ChooseMethod(
	enabled []domain.TwoFactorMethod,
) (domain.TwoFactorMethod, error) {
	method, err := c.resolver.ChooseMethod(enabled)
	if err != nil {
		return "", err
	}
	for _, m := range enabled {
		if m == method {
			return method, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrTwoFactorMethodNotEnabled, method)
}

// ObtainCode asks the resolver for the code received via the given method.
func (c *TwoFactorCoordinator) ObtainCode(
	method domain.TwoFactorMethod,
) (string, error) {
	code, err := c.resolver.Code(method)
	if err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrEmptyTwoFactorCode
	}
	return code, nil
}

// Proof returns the 2FA proof authorizing the given action. If the account
// has no 2FA enabled, it returns a nil proof without involving the
// resolver.
func (c *TwoFactorCoordinator) Proof(
	ctx context.Context, action string,
) (*domain.TwoFactorData, error) {
	config, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	enabled := config.Enabled()
	if len(enabled) <= 0 {
		return nil, nil
	}

	method, err := c.ChooseMethod(enabled)
	if err != nil {
		return nil, err
	}
	if method.RequiresDispatch() {
		if err := c.session.RequestTwoFactorCode(ctx, method, action); err != nil {
			return nil, err
		}
		c.log("requested %s code for action %s", method, action)
	}

	code, err := c.ObtainCode(method)
	if err != nil {
		return nil, err
	}
	return &domain.TwoFactorData{Method: method, Code: code}, nil
}
