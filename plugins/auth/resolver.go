package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/storage"
)

// defaultUserName is used when a signed payload carries no usable name.
const defaultUserName = "Telegram User"

// syntheticEmailDomain scopes synthesized addresses for providers that don't
// supply an email. The format "<externalID>@<domain>" is load-bearing:
// changing it orphans every identity created under the old scheme.
const syntheticEmailDomain = "telegram.local"

// User is the persisted identity record. Users are keyed by email, which is
// either provider-supplied or synthesized from an external identifier.
type User struct {
	ID    string
	Email string
	Name  string
	Image string
}

// Implements storage.Model.
func (u *User) PK() string {
	return u.Email
}

// Resolver maps verified credentials onto persisted users, creating records
// on first sign-in. All methods are safe for concurrent use; races between
// simultaneous logins for the same user are resolved at the store boundary.
type Resolver struct {
	store storage.Store
}

// NewResolver returns a resolver backed by the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveByEmail finds or creates a user for a provider-verified email.
// Name and image fill gaps on an existing record but never overwrite
// populated fields.
func (r *Resolver) ResolveByEmail(ctx context.Context, email, name, image string) (*User, error) {
	if email == "" {
		return nil, errors.New("resolver: email is required")
	}
	user, created, err := r.findOrCreate(ctx, &User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
		Image: image,
	})
	if err != nil {
		return nil, err
	}
	if created {
		return user, nil
	}
	changed := false
	if user.Name == "" && name != "" {
		user.Name = name
		changed = true
	}
	if user.Image == "" && image != "" {
		user.Image = image
		changed = true
	}
	if changed {
		if err := r.store.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	}
	return user, nil
}

// SignedPayload is the credential set delivered by a signed-payload login,
// after signature verification. All fields are strings as received on the
// wire; only ID is required.
type SignedPayload struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	AuthDate  string
}

// Email returns the synthetic address for this external identity. It is a
// pure function of the external ID, so repeated logins always resolve to the
// same user.
func (p SignedPayload) Email() string {
	return p.ID + "@" + syntheticEmailDomain
}

// DisplayName derives a human-readable name from the payload. First and last
// names are joined with a space, skipping empty parts, falling back to the
// username and then to a generic label.
func (p SignedPayload) DisplayName() string {
	parts := make([]string, 0, 2)
	if p.FirstName != "" {
		parts = append(parts, p.FirstName)
	}
	if p.LastName != "" {
		parts = append(parts, p.LastName)
	}
	if name := strings.Join(parts, " "); name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return defaultUserName
}

// ResolveSignedPayload finds or creates the user for a verified signed
// payload. On repeat logins the name and image are refreshed from the
// payload; the email is never touched.
func (r *Resolver) ResolveSignedPayload(ctx context.Context, payload SignedPayload) (*User, error) {
	if payload.ID == "" {
		return nil, errors.New("resolver: payload has no external id")
	}

	name := payload.DisplayName()
	image := payload.PhotoURL

	user, created, err := r.findOrCreate(ctx, &User{
		ID:    uuid.NewString(),
		Email: payload.Email(),
		Name:  name,
		Image: image,
	})
	if err != nil {
		return nil, err
	}
	if created {
		logging.Debugw(ctx, "resolver: created user for external identity",
			"email", user.Email)
		return user, nil
	}

	if user.Name != name || (image != "" && user.Image != image) {
		user.Name = name
		if image != "" {
			user.Image = image
		}
		if err := r.store.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	}
	return user, nil
}

// findOrCreate attempts an atomic insert and falls back to a single fetch if
// the key already exists. Create-then-read avoids the read-then-write race
// between concurrent logins; a conflict followed by a failed read is
// surfaced to the caller rather than retried again.
func (r *Resolver) findOrCreate(ctx context.Context, user *User) (*User, bool, error) {
	err := r.store.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, storage.ErrAlreadyExists) {
		return nil, false, errors.Wrap(err, 0)
	}
	existing := &User{}
	if err := r.store.Read(ctx, user.PK(), existing); err != nil {
		return nil, false, errors.Wrap(err, 0)
	}
	return existing, false, nil
}
