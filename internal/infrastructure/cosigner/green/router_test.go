package green_cosigner_test

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	multisig "github.com/vulpemventures/green-cosigner/pkg/wallet/multi-sig"
)

const testChallenge = "1234567890"

// dropConnection is returned by a procedure handler to make the router
// close the connection instead of replying.
type dropConnection struct{}

type routerError struct {
	uri string
	msg string
}

type procedureHandler func(args []json.RawMessage) (interface{}, *routerError)

// fakeRouter is a minimal WAMP router exposing the login procedures of the
// remote cosigner plus any custom handler.
type fakeRouter struct {
	t         *testing.T
	server    *httptest.Server
	upgrader  websocket.Upgrader
	abortJoin bool

	lock     sync.Mutex
	handlers map[string]procedureHandler
	calls    map[string][]json.RawMessage
}

func newFakeRouter(
	t *testing.T, masterKey *hdkeychain.ExtendedKey, params *chaincfg.Params,
	loginData interface{},
) *fakeRouter {
	r := &fakeRouter{
		t: t,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"wamp.2.json"},
		},
		handlers: make(map[string]procedureHandler),
		calls:    make(map[string][]json.RawMessage),
	}

	expectedAddress, err := multisig.MasterAddress(masterKey, params)
	require.NoError(t, err)
	loginKey, err := masterKey.Derive(multisig.LoginKeyIndex)
	require.NoError(t, err)
	loginPubkey, err := loginKey.ECPubKey()
	require.NoError(t, err)

	r.handle(
		"com.greenaddress.login.get_trezor_challenge",
		func(args []json.RawMessage) (interface{}, *routerError) {
			var address string
			json.Unmarshal(args[0], &address)
			if address != expectedAddress {
				return nil, &routerError{"com.greenaddress.error", "unknown address"}
			}
			return testChallenge, nil
		},
	)
	r.handle(
		"com.greenaddress.login.authenticate",
		func(args []json.RawMessage) (interface{}, *routerError) {
			var sigHex string
			json.Unmarshal(args[0], &sigHex)
			buf, err := hex.DecodeString(sigHex)
			if err != nil {
				return false, nil
			}
			sig, err := ecdsa.ParseDERSignature(buf)
			if err != nil {
				return false, nil
			}
			hash := multisig.LoginChallengeHash(testChallenge)
			if !sig.Verify(hash, loginPubkey) {
				return false, nil
			}
			return loginData, nil
		},
	)

	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRouter) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *fakeRouter) handle(procedure string, handler procedureHandler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.handlers[procedure] = handler
}

func (r *fakeRouter) callArgs(procedure string) ([]json.RawMessage, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	args, ok := r.calls[procedure]
	return args, ok
}

func (r *fakeRouter) serve(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var hello []json.RawMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return
	}
	if r.abortJoin {
		conn.WriteJSON([]interface{}{
			3, map[string]interface{}{}, "wamp.error.no_such_realm",
		})
		return
	}
	conn.WriteJSON([]interface{}{
		2, 42, map[string]interface{}{"roles": map[string]interface{}{"dealer": map[string]interface{}{}}},
	})

	for {
		var msg []json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var msgType int
		json.Unmarshal(msg[0], &msgType)

		switch msgType {
		case 6:
			conn.WriteJSON([]interface{}{
				6, map[string]interface{}{}, "wamp.close.goodbye_and_out",
			})
			return
		case 48:
			var reqId uint64
			var procedure string
			var args []json.RawMessage
			json.Unmarshal(msg[1], &reqId)
			json.Unmarshal(msg[3], &procedure)
			if len(msg) > 4 {
				json.Unmarshal(msg[4], &args)
			}

			r.lock.Lock()
			r.calls[procedure] = args
			handler, ok := r.handlers[procedure]
			r.lock.Unlock()

			if !ok {
				conn.WriteJSON([]interface{}{
					8, 48, reqId, map[string]interface{}{},
					"wamp.error.no_such_procedure",
				})
				continue
			}

			res, rErr := handler(args)
			if _, drop := res.(dropConnection); drop {
				return
			}
			if rErr != nil {
				conn.WriteJSON([]interface{}{
					8, 48, reqId, map[string]interface{}{}, rErr.uri,
					[]interface{}{rErr.msg},
				})
				continue
			}
			conn.WriteJSON([]interface{}{
				50, reqId, map[string]interface{}{}, []interface{}{res},
			})
		}
	}
}
