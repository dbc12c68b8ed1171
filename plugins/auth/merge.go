package auth

// Profile carries provider-supplied metadata about an authenticated user.
// Providers use their native field names, for example google sends `picture`
// and `name` while telegram sends `avatar` and `display_name`.
type Profile map[string]string

// SessionClaims accumulates provider metadata over the lifetime of a session
// token. Fields are write-once: the first provider to supply a value wins and
// later merges never overwrite it.
type SessionClaims struct {
	Subject     string
	Provider    string
	Picture     string
	DisplayName string
}

// Picture-like and name-like profile fields, in priority order.
var (
	pictureFields = []string{"picture", "avatar"}
	nameFields    = []string{"name", "display_name"}
)

// MergeOnSignIn folds provider metadata into the session claims. Called once
// per successful sign-in. Fields already populated on the claims are left
// untouched, and absent profile fields never clear existing values.
func MergeOnSignIn(claims SessionClaims, provider string, profile Profile) SessionClaims {
	if provider != "" {
		claims.Provider = provider
	}
	if claims.Picture == "" {
		claims.Picture = firstProfileField(profile, pictureFields)
	}
	if claims.DisplayName == "" {
		claims.DisplayName = firstProfileField(profile, nameFields)
	}
	return claims
}

// ProjectToSession renders the externally visible identity for a session.
// The subject always comes from the claims. Picture and display name only
// fill gaps: values already present on the session identity, such as those
// set directly by an upstream OAuth profile, are never overridden.
func ProjectToSession(claims SessionClaims, session Identity) Identity {
	session.Subject = claims.Subject
	if claims.Provider != "" {
		session.Provider = claims.Provider
	}
	if session.Picture == "" {
		session.Picture = claims.Picture
	}
	if session.Name == "" {
		session.Name = claims.DisplayName
	}
	return session
}

func firstProfileField(profile Profile, keys []string) string {
	for _, k := range keys {
		if v, ok := profile[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
