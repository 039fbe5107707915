package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	"go.uber.org/ratelimit"
)

const (
	DefaultFundingPollInterval = time.Second
	DefaultFundingMaxAttempts  = 60
)

type FundingGateOpts struct {
	// PollInterval is the minimum time between two queries to the service.
	// Zero disables pacing, a negative value selects the default.
	PollInterval time.Duration
	// MaxAttempts bounds the number of queries before giving up.
	MaxAttempts int
}

func (o FundingGateOpts) withDefaults() FundingGateOpts {
	if o.PollInterval < 0 {
		o.PollInterval = DefaultFundingPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultFundingMaxAttempts
	}
	return o
}

// FundingGate is an address validator that holds back a newly derived
// address until the service confirms it is backing it, by waiting for the
// service's pointer for the subaccount to reach the address index.
type FundingGate struct {
	session     ports.RemoteSession
	subaccount  *uint16
	fingerprint uint32
	opts        FundingGateOpts
	limiter     ratelimit.Limiter

	lock sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewFundingGate(
	session ports.RemoteSession, subaccount *uint16, fingerprint uint32,
	opts FundingGateOpts,
) (*FundingGate, error) {
	if session == nil {
		return nil, ErrMissingSession
	}
	opts = opts.withDefaults()

	limiter := ratelimit.NewUnlimited()
	if opts.PollInterval > 0 {
		limiter = ratelimit.New(
			1, ratelimit.Per(opts.PollInterval), ratelimit.WithoutSlack,
		)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("funding gate: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("funding gate: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &FundingGate{
		session:     session,
		subaccount:  subaccount,
		fingerprint: fingerprint,
		opts:        opts,
		limiter:     limiter,
		log:         logFn,
		warn:        warnFn,
	}, nil
}

// Validate accepts the address with the given key-origin records once the
// service acknowledged its index. Scripts without a record for the service
// key are rejected right away with domain.ErrInvalidScript.
func (g *FundingGate) Validate(
	derivations []*psbt.Bip32Derivation, _ []byte,
) error {
	index, err := g.addressIndex(derivations)
	if err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		g.limiter.Take()

		state, err := runDetached(
			context.Background(),
			func(ctx context.Context) (*domain.FundingState, error) {
				return g.session.QueryFunding(ctx, g.subaccount)
			},
		)
		if err != nil {
			g.warn(err, "failed to query funding state")
			if errors.Is(err, domain.ErrConnection) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		if state.Covers(index) {
			g.log(
				"address index %d acknowledged (pointer %d, attempt %d)",
				index, state.Pointer, attempt,
			)
			return nil
		}
		g.log(
			"address index %d not yet acknowledged (pointer %d, attempt %d/%d)",
			index, state.Pointer, attempt, g.opts.MaxAttempts,
		)
	}

	return fmt.Errorf(
		"%w: index %d after %d attempts",
		domain.ErrFundingTimeout, index, g.opts.MaxAttempts,
	)
}

func (g *FundingGate) addressIndex(
	derivations []*psbt.Bip32Derivation,
) (uint32, error) {
	derivation := findDerivation(derivations, g.fingerprint)
	if derivation == nil || len(derivation.Bip32Path) <= 0 {
		return 0, domain.ErrInvalidScript
	}
	index := derivation.Bip32Path[0]
	if index >= hdkeychain.HardenedKeyStart {
		return 0, domain.ErrInvalidScript
	}
	return index, nil
}
