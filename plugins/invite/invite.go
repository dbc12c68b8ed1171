// Package invite lets an authenticated user invite someone by email before
// they have ever signed in. A placeholder account is created for the address,
// and the real identity provider fills in the profile on their first login.
package invite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"gopkg.in/gomail.v2"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/email"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/plugins/storage"
	"github.com/dpup/taskhub/serverutil"
)

// Constant name for identifying the invite plugin.
const PluginName = "invite"

// InviteSentEvent is published on the event bus when an invitation is sent.
const InviteSentEvent = "invite.sent"

// Roles an invitee can be granted.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "invite.subject",
			Description: "Subject line for invitation emails",
			Type:        "string",
		},
	)
}

const defaultSubject = "You have been invited"

// Invite records a pending invitation.
type Invite struct {
	ID        string
	Email     string
	InvitedBy string
	Role      string
	CreatedAt time.Time
}

// PK returns the primary key used by storage.
func (i *Invite) PK() string {
	return i.ID
}

// InviteRequest asks for an invitation to be sent to an email address.
type InviteRequest struct {
	Email string
	Role  string
}

// InviteResponse reports the invitation and the account it targets.
type InviteResponse struct {
	InviteID string
	UserID   string
}

// InviteOptions allow configuration of the InvitePlugin.
type InviteOption func(*InvitePlugin)

// WithSubject overrides the invitation email subject.
func WithSubject(subject string) InviteOption {
	return func(p *InvitePlugin) {
		p.subject = subject
	}
}

// Plugin returns a new InvitePlugin.
func Plugin(opts ...InviteOption) *InvitePlugin {
	p := &InvitePlugin{
		subject: taskhub.ConfigString("invite.subject"),
	}
	if p.subject == "" {
		p.subject = defaultSubject
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InvitePlugin sends email invitations backed by placeholder accounts.
type InvitePlugin struct {
	subject  string
	store    *storage.StoragePlugin
	resolver *auth.Resolver
	mailer   *email.EmailPlugin
}

// From taskhub.Plugin.
func (p *InvitePlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *InvitePlugin) Deps() []string {
	return []string{auth.PluginName, storage.PluginName, email.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *InvitePlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("invite: storage plugin required")
	}
	if err := sp.InitModel(&auth.User{}); err != nil {
		return errors.Wrap(err, 0).Append("invite: failed to initialize user model")
	}
	if err := sp.InitModel(&Invite{}); err != nil {
		return errors.Wrap(err, 0).Append("invite: failed to initialize invite model")
	}
	p.store = sp
	p.resolver = auth.NewResolver(sp)

	mp, ok := r.Get(email.PluginName).(*email.EmailPlugin)
	if !ok {
		return errors.New("invite: email plugin required")
	}
	p.mailer = mp

	return nil
}

// Invite creates a placeholder account for the address if one doesn't exist,
// records the invitation, and emails the invitee. The caller must be
// authenticated.
func (p *InvitePlugin) Invite(ctx context.Context, req *InviteRequest) (*InviteResponse, error) {
	identity, err := auth.IdentityFromContext(ctx)
	if err != nil {
		return nil, errors.NewC("invite: authentication required", codes.Unauthenticated)
	}
	if req.Email == "" {
		return nil, errors.NewC("invite: email is required", codes.InvalidArgument)
	}
	role := req.Role
	if role == "" {
		role = RoleMember
	}
	if role != RoleOwner && role != RoleAdmin && role != RoleMember {
		return nil, errors.Codef(codes.InvalidArgument, "invite: unknown role %q", req.Role)
	}

	logging.Track(ctx, "invite.email", req.Email)
	logging.Track(ctx, "invite.role", role)

	// The invitee may not have signed in yet. Their profile stays empty until
	// an identity provider supplies it.
	user, err := p.resolver.ResolveByEmail(ctx, req.Email, "", "")
	if err != nil {
		return nil, errors.Wrap(err, 0).Append("invite: failed to resolve invitee")
	}

	inv := &Invite{
		ID:        uuid.NewString(),
		Email:     req.Email,
		InvitedBy: identity.Subject,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := p.store.Create(ctx, inv); err != nil {
		return nil, errors.Wrap(err, 0).Append("invite: failed to save invite")
	}

	if err := p.sendInvitation(ctx, identity, req.Email); err != nil {
		return nil, err
	}

	if bus := eventbus.FromContext(ctx); bus != nil {
		bus.Publish(InviteSentEvent, *inv)
	}

	return &InviteResponse{InviteID: inv.ID, UserID: user.ID}, nil
}

func (p *InvitePlugin) sendInvitation(ctx context.Context, inviter auth.Identity, to string) error {
	inviterName := inviter.Name
	if inviterName == "" {
		inviterName = inviter.Email
	}

	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", p.subject)
	msg.SetBody("text/plain",
		inviterName+" invited you to join. Sign in with this email address to accept: "+
			serverutil.AddressFromContext(ctx))

	if err := p.mailer.Send(ctx, msg); err != nil {
		return errors.Wrap(err, 0).Append("invite: failed to send invitation email")
	}
	return nil
}
