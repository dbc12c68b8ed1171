package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub/errors"
)

const stateExpiration = time.Minute * 5

// State round-trips request information through the provider's authorization
// redirect. It is signed with the client secret so a callback can't inject a
// redirect destination of its own choosing.
type State struct {
	OriginalState string    `json:"s"`
	RequestUri    string    `json:"r"`
	TimeStamp     time.Time `json:"t"`
	Signature     string    `json:"sig"`
}

func (s *State) Encode() string {
	b, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(b)
}

// NewState wraps the client's state and destination and signs them with the
// given secret.
func NewState(secret, originalState, requestUri string) *State {
	s := &State{
		OriginalState: originalState,
		RequestUri:    requestUri,
		TimeStamp:     time.Now(),
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(s.Encode()))
	s.Signature = hex.EncodeToString(h.Sum(nil))
	return s
}

// ParseState decodes and verifies a state parameter received back from the
// provider.
func ParseState(secret, raw string) (*State, error) {
	if raw == "" {
		return nil, errors.NewC("oauth: state parameter is empty", codes.InvalidArgument)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.NewC("oauth: invalid state parameter, not base64 encoded", codes.InvalidArgument)
	}
	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, errors.NewC("oauth: invalid state parameter, json decode failed", codes.InvalidArgument)
	}
	if state.TimeStamp.Add(stateExpiration).Before(time.Now()) {
		return nil, errors.NewC("oauth: state parameter has expired", codes.InvalidArgument)
	}

	actual, err := hex.DecodeString(state.Signature)
	if err != nil {
		return nil, errors.NewC("oauth: state parameter has invalid signature", codes.InvalidArgument)
	}
	state.Signature = ""

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(state.Encode()))
	expected := h.Sum(nil)

	if !hmac.Equal(actual, expected) {
		return nil, errors.NewC("oauth: state parameter has invalid signature", codes.InvalidArgument)
	}

	return &state, nil
}
