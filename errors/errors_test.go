package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
)

func TestGrpcCode(t *testing.T) {
	assert.Equal(t, codes.OK, Code(nil), "code should be OK")

	err := fmt.Errorf("test error")
	assert.Equal(t, codes.Unknown, Code(err), "code should be unknown")

	coded := Wrap(err, 0).WithCode(codes.InvalidArgument)
	assert.Equal(t, codes.InvalidArgument, Code(coded), "code should be InvalidArgument")

	coded = coded.WithCode(codes.AlreadyExists)
	assert.Equal(t, codes.AlreadyExists, Code(coded), "code should be AlreadyExists")

	prefixed := WrapPrefix(coded, "wrapped", 0)
	assert.Equal(t, codes.AlreadyExists, Code(prefixed), "code should still be AlreadyExists")
}

func TestHttpStatusCode(t *testing.T) {
	assert.Equal(t, 200, HTTPStatusCode(nil), "non errors should 200")

	err := fmt.Errorf("test error")
	assert.Equal(t, 500, HTTPStatusCode(err), "should default to 500")

	coded := Wrap(err, 0).WithCode(codes.FailedPrecondition)
	assert.Equal(t, 412, HTTPStatusCode(coded), "GRPC error should map to 412 http error")

	coded = coded.WithHTTPStatusCode(409)
	assert.Equal(t, 409, HTTPStatusCode(coded), "http status code should override grpc code")

	prefixed := WrapPrefix(coded, "wrapped", 0)
	assert.Equal(t, 409, HTTPStatusCode(prefixed), "http status code should still be 409")
}

func TestPrefix(t *testing.T) {
	err := fmt.Errorf("test error")
	prefixed := WrapPrefix(err, "wrapped", 0)
	assert.Equal(t, "wrapped: test error", prefixed.Error(), "error should have prefix")
}

func TestAppend(t *testing.T) {
	sentinel := NewC("record not found", codes.NotFound)
	appended := Mark(sentinel, 0).Append("users table")

	assert.Equal(t, "record not found: users table", appended.Error())
	assert.Equal(t, codes.NotFound, Code(appended), "code should survive Append")
	assert.True(t, Is(appended, sentinel), "appended error should satisfy Is")
}

func TestGRPCStatus(t *testing.T) {
	badRequest := &errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{
				Field:       "test_field",
				Description: "Test field was empty",
			},
		},
	}

	err := NewC("test error", codes.InvalidArgument).WithDetails(badRequest)
	st := err.GRPCStatus()
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "test error", st.Message())
	assert.Equal(t, "test_field", st.Details()[0].(*errdetails.BadRequest).FieldViolations[0].Field)
}

func TestPublicMessage(t *testing.T) {
	err := New("test error")
	assert.Equal(t, "test error", err.GRPCStatus().Message())

	err = err.WithPublicMessage("public message")
	assert.Equal(t, "public message", err.GRPCStatus().Message())
}

func TestWrappedError(t *testing.T) {
	err := NewC("test error", codes.InvalidArgument)
	wrappedErr := fmt.Errorf("%w : wrapped error", err)

	assert.True(t, Is(wrappedErr, err))
	assert.Equal(t, codes.Unknown, Code(wrappedErr), "fmt wrapping drops the code")
}

func TestMark(t *testing.T) {
	err := NewC("test error", codes.InvalidArgument)
	markedErr := Mark(err, 0)

	assert.True(t, Is(markedErr, err), "Marked error should still satisfy Is")
	assert.Equal(t, codes.InvalidArgument, Code(markedErr))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := NewC("not found", codes.NotFound)

	assert.ErrorIs(t, Mark(sentinel, 0), sentinel,
		"marked sentinel should match under the standard library chain")
	assert.ErrorIs(t, Mark(sentinel, 0).Append("fetching account"), sentinel,
		"appended detail should not break sentinel matching")
	assert.ErrorIs(t, WrapPrefix(sentinel, "account", 0), sentinel)
	assert.ErrorIs(t, fmt.Errorf("outer: %w", Mark(sentinel, 0)), sentinel)

	other := NewC("not found", codes.NotFound)
	assert.NotErrorIs(t, Mark(other, 0), sentinel,
		"distinct sentinels with the same message must not match")
}

func TestMaybeWrap(t *testing.T) {
	assert.NoError(t, MaybeWrap(nil, 0), "nil should pass through")

	err := fmt.Errorf("test error")
	wrapped := MaybeWrap(err, 0)
	assert.Error(t, wrapped)
	assert.True(t, Is(wrapped, err))
}
