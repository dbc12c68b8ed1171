package auth

import (
	"context"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/serverutil"
)

// LoginRequest asks a provider to authenticate a user. Creds carry
// provider-specific fields, for example an OAuth code or a signed payload.
type LoginRequest struct {
	Provider    string
	Creds       map[string]string
	RedirectUri string
	IssueToken  bool
}

// LoginResponse reports the outcome of a login attempt. Token is only
// populated when the request asked for one instead of a cookie.
type LoginResponse struct {
	Issued      bool
	Token       string
	RedirectUri string
}

// LogoutRequest invalidates the current session.
type LogoutRequest struct {
	RedirectUri string
}

// LogoutResponse confirms logout and carries the post-logout destination.
type LogoutResponse struct {
	RedirectUri string
}

// IdentityRequest fetches the identity associated with the current request.
type IdentityRequest struct{}

// IdentityResponse describes the authenticated user.
type IdentityResponse struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// AuthService is the request-facing surface of the auth plugin.
type AuthService interface {
	Login(ctx context.Context, in *LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, in *LogoutRequest) (*LogoutResponse, error)
	Identity(ctx context.Context, in *IdentityRequest) (*IdentityResponse, error)
}

// LoginHandler is a function which allows delegation of login requests.
type LoginHandler func(ctx context.Context, req *LoginRequest) (*LoginResponse, error)

func New() AuthService {
	return &impl{}
}

// Implements AuthService.
type impl struct {
	handlers map[string]LoginHandler
}

func (s *impl) AddLoginHandler(provider string, h LoginHandler) {
	if s.handlers == nil {
		s.handlers = map[string]LoginHandler{}
	}
	s.handlers[provider] = h
}

func (s *impl) Login(ctx context.Context, in *LoginRequest) (*LoginResponse, error) {
	logging.Track(ctx, "auth.provider", in.Provider)
	logging.Track(ctx, "auth.issueToken", in.IssueToken)
	logging.Track(ctx, "auth.redirectUri", in.RedirectUri)
	logging.Info(ctx, "Login attempt")

	if in.RedirectUri != "" && in.IssueToken {
		return nil, errors.NewC("auth: `issue_token` not compatible with `redirect_uri`", codes.InvalidArgument)
	}

	// TODO: Verify redirect_uri is a path or has a valid host.

	if h, ok := s.handlers[in.Provider]; ok {
		resp, err := h(ctx, in)

		if resp != nil && resp.RedirectUri != "" {
			// Send a 302 redirect.
			logging.Infow(ctx, "Sending redirect", "redirectUri", resp.RedirectUri)
			if e := serverutil.SendStatusCode(ctx, http.StatusFound); e != nil {
				logging.Errorw(ctx, "auth: failed to send status code", "error", e)
			}
			if e := serverutil.SendHeader(ctx, "location", resp.RedirectUri); e != nil {
				logging.Errorw(ctx, "auth: failed to send header", "error", e)
			}
		}

		return resp, err
	}

	return nil, errors.NewC("auth: unknown or unregistered provider", codes.InvalidArgument)
}

func (s *impl) Logout(ctx context.Context, in *LogoutRequest) (*LogoutResponse, error) {
	id, err := identityFromCookie(ctx)
	if err != nil {
		return nil, err
	}

	// If enabled, block this token from future use.
	if err := MaybeBlock(ctx, id.SessionID); err != nil {
		logging.Errorw(ctx, "auth: failed to block token for logout", "error", err)
	}

	if err := ClearIdentityCookie(ctx); err != nil {
		return nil, err
	}

	r := in.RedirectUri
	if r == "" {
		r = serverutil.AddressFromContext(ctx)
	}

	if bus := eventbus.FromContext(ctx); bus != nil {
		bus.Publish(LogoutEvent, NewAuthEvent(id))
	}

	// For gateway requests, send the HTTP headers.
	serverutil.SendStatusCode(ctx, http.StatusFound)
	serverutil.SendHeader(ctx, "location", r)
	logging.Infow(ctx, "Sending logout redirect", "redirectUri", r)

	return &LogoutResponse{
		RedirectUri: r,
	}, nil
}

func (s *impl) Identity(ctx context.Context, in *IdentityRequest) (*IdentityResponse, error) {
	i, err := IdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &IdentityResponse{
		Provider:      i.Provider,
		Subject:       i.Subject,
		Email:         i.Email,
		EmailVerified: i.EmailVerified,
		Name:          i.Name,
		Picture:       i.Picture,
	}, nil
}
