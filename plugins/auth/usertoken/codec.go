package usertoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub/errors"
)

// ErrDecode is returned for any malformed, tampered, or undecryptable token.
// Callers should treat it as "no identity" rather than surfacing it.
var ErrDecode = errors.NewC("usertoken: invalid token", codes.Unauthenticated)

// tokenHeader is authenticated alongside the ciphertext; a token whose
// header was altered after encoding fails authentication.
const tokenHeader = `{"alg":"dir","enc":"A256GCM"}`

// Payload is the identity record carried inside a portable token. All fields
// are optional; an absent token, not an empty payload, means "no identity".
type Payload struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Image    string `json:"image,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Codec encrypts and decrypts portable identity tokens with a key derived
// from a shared secret. A token can be decoded by any process holding the
// same secret, without a session-store lookup.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec returns a codec for the given secret. The secret is required;
// construction fails rather than deferring the problem to the first request.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.NewC("usertoken: secret is required", codes.FailedPrecondition)
	}
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return &Codec{aead: aead}, nil
}

// Encode seals the payload into an opaque token string. Each call draws a
// fresh random nonce, so encoding the same payload twice yields different
// tokens.
func (c *Codec) Encode(payload Payload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, 0)
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(tokenHeader))
	ciphertext := c.aead.Seal(nil, nonce, plaintext, []byte(header))

	return header + "." +
		base64.RawURLEncoding.EncodeToString(nonce) + "." +
		base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decode opens a token and returns the payload within. Any structural
// problem, failed base64 parse, or authentication failure returns ErrDecode;
// a partial payload is never returned.
func (c *Codec) Decode(token string) (Payload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Payload{}, errors.Mark(ErrDecode, 0).Append("malformed envelope")
	}

	nonce, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return Payload{}, errors.Mark(ErrDecode, 0).Append("bad nonce")
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Payload{}, errors.Mark(ErrDecode, 0).Append("bad ciphertext")
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(parts[0]))
	if err != nil {
		return Payload{}, errors.Mark(ErrDecode, 0).Append("authentication failed")
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Payload{}, errors.Mark(ErrDecode, 0).Append("bad payload")
	}
	return payload, nil
}
