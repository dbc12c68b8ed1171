package auth

const (
	LoginEvent  = "auth.login"
	LogoutEvent = "auth.logout"
)

// AuthEvent is published on the event bus when an authentication event
// occurs.
type AuthEvent struct {
	Identity Identity
}

// NewAuthEvent wraps an identity for publication.
func NewAuthEvent(identity Identity) AuthEvent {
	return AuthEvent{Identity: identity}
}
