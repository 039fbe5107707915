package domain

const (
	SessionDisconnected SessionState = iota
	SessionConnecting
	SessionAuthenticating
	SessionAuthenticated
	SessionError
)

var sessionStateString = map[SessionState]string{
	SessionDisconnected:   "Disconnected",
	SessionConnecting:     "Connecting",
	SessionAuthenticating: "Authenticating",
	SessionAuthenticated:  "Authenticated",
	SessionError:          "Error",
}

// SessionState is the lifecycle state of a remote session. Only an
// Authenticated session accepts operative calls; an Error session must be
// replaced by a new one.
type SessionState int

func (s SessionState) String() string {
	return sessionStateString[s]
}
