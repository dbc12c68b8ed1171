package google

import (
	"encoding/json"
	"io"

	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub/errors"
)

// Endpoint which returns profile information for the user associated with an
// access token.
const userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// UserInfo as returned by Google's userinfo endpoint or encoded in the
// claims of an ID token.
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Locale        string `json:"locale"`
	Picture       string `json:"picture"`
	Hd            string `json:"hd"`
}

// IsConfirmed returns whether Google has verified the email address.
func (u *UserInfo) IsConfirmed() bool {
	return u.EmailVerified != nil && *u.EmailVerified
}

func (u *UserInfo) validate() error {
	if u.ID == "" {
		return errors.NewC("google: user info missing id", codes.Internal)
	}
	if u.Email == "" {
		return errors.NewC("google: user info missing email", codes.Internal)
	}
	if u.Name == "" {
		return errors.NewC("google: user info missing name", codes.Internal)
	}
	return nil
}

// UserInfoFromJSON parses the response of the userinfo endpoint.
func UserInfoFromJSON(r io.Reader) (*UserInfo, error) {
	var u UserInfo
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return nil, errors.Wrap(err, 0).WithCode(codes.Internal).Append("google: failed to parse user info")
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserInfoFromClaims maps verified ID token claims to a UserInfo.
func UserInfoFromClaims(claims map[string]interface{}) (*UserInfo, error) {
	u := &UserInfo{
		ID:         str(claims, "sub"),
		Email:      str(claims, "email"),
		Name:       str(claims, "name"),
		GivenName:  str(claims, "given_name"),
		FamilyName: str(claims, "family_name"),
		Locale:     str(claims, "locale"),
		Picture:    str(claims, "picture"),
		Hd:         str(claims, "hd"),
	}
	if v, ok := claims["email_verified"].(bool); ok {
		u.EmailVerified = &v
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func str(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
