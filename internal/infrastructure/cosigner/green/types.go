package green_cosigner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	wampSubprotocol = "wamp.2.json"

	msgHello   = 1
	msgWelcome = 2
	msgAbort   = 3
	msgGoodbye = 6
	msgError   = 8
	msgCall    = 48
	msgResult  = 50

	closeNormal = "wamp.close.normal"
	closeReply  = "wamp.close.goodbye_and_out"
)

// message is a raw WAMP message, ie. a JSON array whose first item is the
// message type.
type message []json.RawMessage

func parseMessage(buf []byte) (int, message, error) {
	var msg message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return 0, nil, err
	}
	if len(msg) <= 0 {
		return 0, nil, fmt.Errorf("empty message")
	}
	var msgType int
	if err := json.Unmarshal(msg[0], &msgType); err != nil {
		return 0, nil, fmt.Errorf("invalid message type: %s", msg[0])
	}
	return msgType, msg, nil
}

func (m message) uint64At(i int) (uint64, error) {
	if i >= len(m) {
		return 0, fmt.Errorf("missing item %d", i)
	}
	var v uint64
	if err := json.Unmarshal(m[i], &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (m message) stringAt(i int) (string, error) {
	if i >= len(m) {
		return "", fmt.Errorf("missing item %d", i)
	}
	var v string
	if err := json.Unmarshal(m[i], &v); err != nil {
		return "", err
	}
	return v, nil
}

func (m message) listAt(i int) []json.RawMessage {
	if i >= len(m) {
		return nil
	}
	var v []json.RawMessage
	if err := json.Unmarshal(m[i], &v); err != nil {
		return nil
	}
	return v
}

// result is the outcome of a call, routed from the listener to the caller.
type result struct {
	args []json.RawMessage
	err  error
}

// arg decodes the i-th positional argument of the result into v.
func (r *result) arg(i int, v interface{}) error {
	if i >= len(r.args) {
		return fmt.Errorf("missing result argument %d", i)
	}
	return json.Unmarshal(r.args[i], v)
}

// callError is an ERROR message received in reply to a CALL.
type callError struct {
	uri  string
	args []json.RawMessage
}

func (e callError) Error() string {
	if len(e.args) <= 0 {
		return e.uri
	}
	details := make([]string, 0, len(e.args))
	for _, a := range e.args {
		details = append(details, string(a))
	}
	return fmt.Sprintf("%s: %s", e.uri, strings.Join(details, ", "))
}

// chHandler routes results to the pending calls by request id.
type chHandler struct {
	lock             *sync.RWMutex
	chResultsByReqId map[uint64]chan result
}

func newChHandler() *chHandler {
	return &chHandler{
		lock:             &sync.RWMutex{},
		chResultsByReqId: make(map[uint64]chan result),
	}
}

func (h *chHandler) addRequest(id uint64) chan result {
	h.lock.Lock()
	defer h.lock.Unlock()

	ch := make(chan result, 1)
	h.chResultsByReqId[id] = ch
	return ch
}

// sendResult delivers the result to the pending call with the given id, if
// any. Results for unknown or expired ids are dropped.
func (h *chHandler) sendResult(id uint64, res result) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	ch, ok := h.chResultsByReqId[id]
	if !ok {
		return false
	}
	delete(h.chResultsByReqId, id)
	ch <- res
	return true
}

func (h *chHandler) clearRequest(id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.chResultsByReqId, id)
}

// failAll makes every pending call return the given error.
func (h *chHandler) failAll(err error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for id, ch := range h.chResultsByReqId {
		ch <- result{err: err}
		delete(h.chResultsByReqId, id)
	}
}
