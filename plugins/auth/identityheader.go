package auth

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/dpup/taskhub/errors"
)

// identityFromAuthHeader reads the identity token from the authorization
// metadata. Three forms are accepted:
//   - the bare token
//   - "Bearer <token>"
//   - basic auth with the token as the username and an empty password,
//     which is what `curl -u "$TOKEN:"` sends
func identityFromAuthHeader(ctx context.Context) (Identity, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 || values[0] == "" {
		return Identity{}, errors.Mark(ErrNotFound, 0)
	}

	scheme, rest, found := strings.Cut(values[0], " ")
	if !found {
		// No scheme prefix, the whole header is the token.
		return ParseIdentityToken(ctx, values[0])
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		return ParseIdentityToken(ctx, rest)
	case "basic":
		token, err := tokenFromBasicAuth(rest)
		if err != nil {
			return Identity{}, err
		}
		return ParseIdentityToken(ctx, token)
	default:
		return Identity{}, errors.Mark(ErrInvalidHeader, 0)
	}
}

func tokenFromBasicAuth(encoded string) (string, error) {
	decoded, _ := base64.StdEncoding.DecodeString(encoded)
	token, password, ok := strings.Cut(string(decoded), ":")
	if !ok || password != "" {
		return "", errors.Mark(ErrInvalidHeader, 0)
	}
	return token, nil
}
