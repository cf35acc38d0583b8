package core

// Session carries the request scoped values a call to the gradebook backend needs.
// It is passed explicitly down to every such call.
type Session struct {
	AuthToken string // bearer token of the end user, forwarded as is
	RequestID string
}

func (s Session) IsAnonymous() bool { return s.AuthToken == "" }
