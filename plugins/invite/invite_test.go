package invite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/email"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/plugins/eventbus/membus"
	"github.com/dpup/taskhub/plugins/storage"
	"github.com/dpup/taskhub/plugins/storage/memstore"
	"github.com/dpup/taskhub/serverutil"
)

type mockSender struct {
	err         error
	callCount   int
	lastMessage *gomail.Message
}

func (m *mockSender) DialAndSend(msg *gomail.Message) error {
	m.callCount++
	m.lastMessage = msg
	return m.err
}

type fixture struct {
	plugin *InvitePlugin
	store  storage.Store
	sender *mockSender
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		sender: &mockSender{},
	}

	registry := &taskhub.Registry{}
	registry.Register(
		storage.Plugin(f.store),
		auth.Plugin(auth.WithSigningKey("test-key"), auth.WithExpiration(time.Hour)),
		email.Plugin(email.WithFrom("noreply@example.com"), email.WithSender(f.sender)),
	)
	f.plugin = Plugin()
	registry.Register(f.plugin)

	err := registry.Init(logging.With(t.Context(), logging.NewNopLogger()))
	require.NoError(t, err)
	return f
}

func (f *fixture) ctx(t *testing.T) context.Context {
	t.Helper()
	ctx := logging.With(t.Context(), logging.NewNopLogger())
	ctx = serverutil.WithAddress(ctx, "http://localhost:8000")
	return auth.WithIdentityForTest(ctx, auth.Identity{
		SessionID: auth.GenerateSessionID(),
		AuthTime:  time.Now(),
		Subject:   "inviter-1",
		Provider:  "google",
		Email:     "owner@example.com",
		Name:      "Olive Owner",
	})
}

func TestInvite_CreatesPlaceholderUser(t *testing.T) {
	f := setup(t)
	ctx := f.ctx(t)

	resp, err := f.plugin.Invite(ctx, &InviteRequest{Email: "new@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.InviteID)
	assert.NotEmpty(t, resp.UserID)

	user := &auth.User{}
	require.NoError(t, f.store.Read(ctx, "new@example.com", user))
	assert.Equal(t, resp.UserID, user.ID)
	assert.Empty(t, user.Name, "placeholder accounts have no profile until first login")

	inv := &Invite{}
	require.NoError(t, f.store.Read(ctx, resp.InviteID, inv))
	assert.Equal(t, "new@example.com", inv.Email)
	assert.Equal(t, "inviter-1", inv.InvitedBy)
	assert.Equal(t, RoleMember, inv.Role)
}

func TestInvite_ExistingUserReused(t *testing.T) {
	f := setup(t)
	ctx := f.ctx(t)

	existing := &auth.User{ID: "user-9", Email: "ann@example.com", Name: "Ann"}
	require.NoError(t, f.store.Create(ctx, existing))

	resp, err := f.plugin.Invite(ctx, &InviteRequest{Email: "ann@example.com", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "user-9", resp.UserID)

	user := &auth.User{}
	require.NoError(t, f.store.Read(ctx, "ann@example.com", user))
	assert.Equal(t, "Ann", user.Name)

	inv := &Invite{}
	require.NoError(t, f.store.Read(ctx, resp.InviteID, inv))
	assert.Equal(t, RoleAdmin, inv.Role)
}

func TestInvite_SendsEmail(t *testing.T) {
	f := setup(t)

	_, err := f.plugin.Invite(f.ctx(t), &InviteRequest{Email: "new@example.com"})
	require.NoError(t, err)

	require.Equal(t, 1, f.sender.callCount)
	msg := f.sender.lastMessage
	assert.Equal(t, []string{"new@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{defaultSubject}, msg.GetHeader("Subject"))
}

func TestInvite_PublishesEvent(t *testing.T) {
	f := setup(t)

	bus := membus.New(t.Context())
	var events []*eventbus.Message
	done := make(chan struct{})
	bus.Subscribe(InviteSentEvent, func(ctx context.Context, msg *eventbus.Message) error {
		events = append(events, msg)
		close(done)
		return nil
	})

	ctx := eventbus.WithEventBus(f.ctx(t), bus)
	_, err := f.plugin.Invite(ctx, &InviteRequest{Email: "new@example.com"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for invite event")
	}
	require.Len(t, events, 1)
	inv, ok := events[0].Data.(Invite)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", inv.Email)
}

func TestInvite_RequiresAuth(t *testing.T) {
	f := setup(t)
	ctx := logging.With(t.Context(), logging.NewNopLogger())
	ctx = auth.WithIdentityExtractorsForTest(ctx)

	_, err := f.plugin.Invite(ctx, &InviteRequest{Email: "new@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication required")
}

func TestInvite_RequiresEmail(t *testing.T) {
	f := setup(t)

	_, err := f.plugin.Invite(f.ctx(t), &InviteRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestInvite_UnknownRole(t *testing.T) {
	f := setup(t)

	_, err := f.plugin.Invite(f.ctx(t), &InviteRequest{Email: "new@example.com", Role: "superuser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "superuser"`)
}

func TestInvite_EmailFailure(t *testing.T) {
	f := setup(t)
	f.sender.err = assert.AnError

	_, err := f.plugin.Invite(f.ctx(t), &InviteRequest{Email: "new@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send invitation email")
}
