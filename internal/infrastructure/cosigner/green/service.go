package green_cosigner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
	"github.com/vulpemventures/green-cosigner/internal/core/ports"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

const (
	DefaultRealm         = "realm1"
	DefaultClientVersion = "[v2,sw]neerg"
	clientType           = "GA"
	fundAddressType      = "p2wsh"

	procedureGetChallenge    = "com.greenaddress.login.get_trezor_challenge"
	procedureAuthenticate    = "com.greenaddress.login.authenticate"
	procedureTwoFactorConfig = "com.greenaddress.twofactor.get_config"
	procedureTwoFactorPrefix = "com.greenaddress.twofactor.request_"
	procedureSignRawTx       = "com.greenaddress.vault.sign_raw_tx"
	procedureFund            = "com.greenaddress.vault.fund"
)

var (
	ErrMissingAddr      = fmt.Errorf("missing remote cosigner address")
	ErrMissingMasterKey = fmt.Errorf("missing master key")
	ErrInvalidMasterKey = fmt.Errorf("master key must be an extended private key")
	ErrMissingNetwork   = fmt.Errorf("missing network")
)

type ServiceArgs struct {
	Addr          string
	Realm         string
	MasterKey     *hdkeychain.ExtendedKey
	Network       *chaincfg.Params
	DeviceID      string
	ClientVersion string
	// RequestTimeout bounds every call. Zero waits as long as the context
	// allows.
	RequestTimeout time.Duration
	// Registerer, if defined, is where the rpc metrics are registered.
	Registerer prometheus.Registerer
}

func (a *ServiceArgs) validate() error {
	if a.Addr == "" {
		return ErrMissingAddr
	}
	if a.MasterKey == nil {
		return ErrMissingMasterKey
	}
	if !a.MasterKey.IsPrivate() {
		return ErrInvalidMasterKey
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.Realm == "" {
		a.Realm = DefaultRealm
	}
	if a.ClientVersion == "" {
		a.ClientVersion = DefaultClientVersion
	}
	if a.DeviceID == "" {
		a.DeviceID = uuid.NewString()
	}
	return nil
}

type service struct {
	args      ServiceArgs
	client    *wsClient
	metrics   *metrics
	lock      *sync.RWMutex
	state     domain.SessionState
	loginData *domain.LoginData

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService connects to the remote cosigner and logs in with the given
// master key. The returned session is authenticated, any failure is fatal
// and no session is returned.
func NewService(ctx context.Context, args ServiceArgs) (ports.RemoteSession, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	m, err := newMetrics(args.Registerer)
	if err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("green cosigner: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("green cosigner: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	svc := &service{
		args:    args,
		metrics: m,
		lock:    &sync.RWMutex{},
		state:   domain.SessionConnecting,
		log:     logFn,
		warn:    warnFn,
	}

	client, err := newWSClient(ctx, args.Addr, args.Realm, svc.onFailure)
	if err != nil {
		svc.setState(domain.SessionError)
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	svc.client = client
	svc.setState(domain.SessionAuthenticating)

	loginData, err := svc.authenticate(ctx)
	if err != nil {
		svc.setState(domain.SessionError)
		client.close()
		return nil, err
	}

	svc.lock.Lock()
	svc.loginData = loginData
	svc.state = domain.SessionAuthenticated
	svc.lock.Unlock()

	svc.log(
		"authenticated with gait path of length %d and %d subaccount(s)",
		len(loginData.GaitPath), len(loginData.Subaccounts),
	)
	return svc, nil
}

func (s *service) State() domain.SessionState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

func (s *service) LoginData() *domain.LoginData {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.loginData
}

func (s *service) GetTwoFactorConfig(
	ctx context.Context,
) (*domain.TwoFactorConfig, error) {
	res, err := s.authenticatedCall(ctx, procedureTwoFactorConfig)
	if err != nil {
		return nil, err
	}

	var config domain.TwoFactorConfig
	if err := res.arg(0, &config); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	return &config, nil
}

func (s *service) RequestTwoFactorCode(
	ctx context.Context, method domain.TwoFactorMethod, action string,
) error {
	if !method.RequiresDispatch() {
		return nil
	}
	_, err := s.authenticatedCall(
		ctx, procedureTwoFactorPrefix+method.String(), action,
	)
	return err
}

func (s *service) SignRawTransaction(
	ctx context.Context, txHex string, proof *domain.TwoFactorData,
) (*domain.SignedTransaction, error) {
	var twoFactorData interface{} = map[string]interface{}{}
	if proof != nil {
		twoFactorData = proof
	}

	res, err := s.authenticatedCall(ctx, procedureSignRawTx, txHex, twoFactorData)
	if err != nil {
		return nil, err
	}

	var signedTx domain.SignedTransaction
	if err := res.arg(0, &signedTx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	if signedTx.Tx == "" {
		return nil, fmt.Errorf("%w: missing signed tx", domain.ErrProtocolDecode)
	}
	return &signedTx, nil
}

func (s *service) QueryFunding(
	ctx context.Context, subaccount *uint16,
) (*domain.FundingState, error) {
	pointer := domain.PrimaryAccount
	if subaccount != nil {
		pointer = *subaccount
	}

	res, err := s.authenticatedCall(
		ctx, procedureFund, pointer, true, fundAddressType,
	)
	if err != nil {
		return nil, err
	}

	var state domain.FundingState
	if err := res.arg(0, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	return &state, nil
}

func (s *service) Close() {
	s.lock.Lock()
	if s.state == domain.SessionDisconnected {
		s.lock.Unlock()
		return
	}
	s.state = domain.SessionDisconnected
	s.lock.Unlock()

	if s.client != nil {
		s.client.close()
	}
	s.log("session closed")
}

func (s *service) authenticate(ctx context.Context) (*domain.LoginData, error) {
	address, err := multisig.MasterAddress(s.args.MasterKey, s.args.Network)
	if err != nil {
		return nil, err
	}

	res, err := s.call(ctx, procedureGetChallenge, address, true)
	if err != nil {
		return nil, loginError(err)
	}
	challenge, err := decodeChallenge(res)
	if err != nil {
		return nil, err
	}

	sig, err := multisig.SignLoginChallenge(s.args.MasterKey, challenge)
	if err != nil {
		return nil, err
	}

	res, err = s.call(
		ctx, procedureAuthenticate,
		sig, false, clientType, s.args.DeviceID, s.args.ClientVersion,
	)
	if err != nil {
		return nil, loginError(err)
	}

	var rejected bool
	if err := res.arg(0, &rejected); err == nil {
		return nil, fmt.Errorf("%w: login rejected", domain.ErrAuthentication)
	}

	var loginData domain.LoginData
	if err := res.arg(0, &loginData); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProtocolDecode, err)
	}
	return &loginData, nil
}

func (s *service) authenticatedCall(
	ctx context.Context, procedure string, args ...interface{},
) (*result, error) {
	if s.State() != domain.SessionAuthenticated {
		return nil, domain.ErrNotAuthenticated
	}
	return s.call(ctx, procedure, args...)
}

func (s *service) call(
	ctx context.Context, procedure string, args ...interface{},
) (*result, error) {
	start := time.Now()
	res, err := s.client.call(ctx, s.args.RequestTimeout, procedure, args...)
	s.metrics.observe(procedure, start, err)
	if err != nil {
		s.log("call to %s failed: %s", procedure, err)
	}
	return res, err
}

func (s *service) setState(state domain.SessionState) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

func (s *service) onFailure(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == domain.SessionDisconnected {
		return
	}
	s.state = domain.SessionError
	s.warn(err, "session lost, a new one must be created")
}

func decodeChallenge(res *result) (string, error) {
	var challenge string
	if err := res.arg(0, &challenge); err == nil && challenge != "" {
		return challenge, nil
	}
	var number json.Number
	if err := res.arg(0, &number); err == nil && number != "" {
		return number.String(), nil
	}
	return "", fmt.Errorf("%w: invalid login challenge", domain.ErrProtocolDecode)
}

// loginError maps failures of login calls: router errors mean the service
// refused the login, anything else is a transport failure.
func loginError(err error) error {
	if errors.Is(err, domain.ErrConnection) {
		return err
	}
	var callErr callError
	if errors.As(err, &callErr) {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrConnection, err)
}
