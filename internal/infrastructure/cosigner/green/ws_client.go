package green_cosigner

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

const handshakeTimeout = 15 * time.Second

// wsClient is a WAMP v2 client, limited to the caller role, over a single
// websocket connection. Every call is routed back to its caller by request
// id by the listener goroutine.
type wsClient struct {
	conn      *websocket.Conn
	writeLock *sync.Mutex
	nextId    uint64
	sessionId uint64
	chHandler *chHandler
	chDone    chan struct{}
	closeOnce *sync.Once
	closing   atomic.Bool
	onFailure func(err error)

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// newWSClient opens the connection and joins the given realm.
func newWSClient(
	ctx context.Context, addr, realm string, onFailure func(err error),
) (*wsClient, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{wampSubprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, addr, nil)
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

	c := &wsClient{
		conn:      conn,
		writeLock: &sync.Mutex{},
		chHandler: newChHandler(),
		chDone:    make(chan struct{}),
		closeOnce: &sync.Once{},
		onFailure: onFailure,
		log:       logFn,
		warn:      warnFn,
	}

	if err := c.join(ctx, realm); err != nil {
		conn.Close()
		return nil, err
	}

	go c.listen()

	return c, nil
}

func (c *wsClient) join(ctx context.Context, realm string) error {
	hello := []interface{}{
		msgHello, realm, map[string]interface{}{
			"roles": map[string]interface{}{"caller": map[string]interface{}{}},
		},
	}
	if err := c.write(hello); err != nil {
		return err
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	_, buf, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	msgType, msg, err := parseMessage(buf)
	if err != nil {
		return err
	}

	switch msgType {
	case msgWelcome:
		sessionId, err := msg.uint64At(1)
		if err != nil {
			return fmt.Errorf("invalid welcome message: %w", err)
		}
		c.sessionId = sessionId
		c.log("joined realm %s with session id %d", realm, sessionId)
		return nil
	case msgAbort:
		reason, _ := msg.stringAt(2)
		return fmt.Errorf("realm %s join aborted: %s", realm, reason)
	default:
		return fmt.Errorf("unexpected message type %d while joining realm", msgType)
	}
}

func (c *wsClient) listen() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				c.shutdown(nil)
				return
			}
			c.warn(err, "connection dropped")
			c.shutdown(err)
			return
		}

		msgType, msg, err := parseMessage(buf)
		if err != nil {
			c.warn(err, "failed to parse message")
			continue
		}

		switch msgType {
		case msgResult:
			reqId, err := msg.uint64At(1)
			if err != nil {
				c.warn(err, "invalid result message")
				continue
			}
			if !c.chHandler.sendResult(reqId, result{args: msg.listAt(3)}) {
				c.log("dropped result for unknown request %d", reqId)
			}
		case msgError:
			reqType, _ := msg.uint64At(1)
			reqId, err := msg.uint64At(2)
			if err != nil || reqType != msgCall {
				c.warn(err, "unexpected error message")
				continue
			}
			uri, _ := msg.stringAt(4)
			callErr := callError{uri: uri, args: msg.listAt(5)}
			if !c.chHandler.sendResult(reqId, result{err: callErr}) {
				c.log("dropped error for unknown request %d", reqId)
			}
		case msgGoodbye:
			reason, _ := msg.stringAt(2)
			if !c.closing.Load() {
				c.write([]interface{}{msgGoodbye, map[string]interface{}{}, closeReply})
			}
			c.conn.Close()
			if c.closing.Load() {
				c.shutdown(nil)
				return
			}
			c.shutdown(fmt.Errorf("session closed by router: %s", reason))
			return
		default:
			c.log("ignored message of type %d", msgType)
		}
	}
}

// call invokes the given remote procedure and waits for its result.
// A zero timeout waits until the context is done or the connection drops.
func (c *wsClient) call(
	ctx context.Context, timeout time.Duration, procedure string,
	args ...interface{},
) (*result, error) {
	select {
	case <-c.chDone:
		return nil, domain.ErrConnection
	default:
	}

	if args == nil {
		args = []interface{}{}
	}
	reqId := atomic.AddUint64(&c.nextId, 1)
	chResult := c.chHandler.addRequest(reqId)
	defer c.chHandler.clearRequest(reqId)

	req := []interface{}{
		msgCall, reqId, map[string]interface{}{}, procedure, args,
	}
	if err := c.write(req); err != nil {
		c.warn(err, "failed to send request for procedure %s", procedure)
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case res := <-chResult:
		if res.err != nil {
			return nil, res.err
		}
		return &res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s timed out: %w", procedure, ctx.Err())
	case <-c.chDone:
		return nil, domain.ErrConnection
	}
}

func (c *wsClient) write(msg interface{}) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	return c.conn.WriteJSON(msg)
}

// close leaves the realm and closes the connection.
func (c *wsClient) close() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}

	goodbye := []interface{}{msgGoodbye, map[string]interface{}{}, closeNormal}
	if err := c.write(goodbye); err != nil {
		c.conn.Close()
		return
	}

	select {
	case <-c.chDone:
	case <-time.After(time.Second):
		c.conn.Close()
	}
}

func (c *wsClient) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.conn.Close()
		failure := domain.ErrConnection
		if err != nil {
			failure = fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		c.chHandler.failAll(failure)
		close(c.chDone)
		if err != nil && c.onFailure != nil {
			c.onFailure(err)
		}
	})
}
