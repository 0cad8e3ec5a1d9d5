package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorType
	}{
		{"JSON Query to api/v1/users: challenge_required", ErrorTypeChallengeRequired},
		{"checkpoint_required: security hold", ErrorTypeCheckpointRequired},
		{"HTTP error code 429", ErrorTypeRateLimit},
		{"Too Many Requests", ErrorTypeRateLimit},
		{"Please wait a few minutes before you try again.", ErrorTypeRateLimit},
		{"rate limit reached", ErrorTypeRateLimit},
		{"The password you entered is incorrect", ErrorTypeInvalidCredentials},
		{"Invalid username", ErrorTypeInvalidCredentials},
		{"Profile ghost not found", ErrorTypeNotFound},
		{"HTTP 404 on query", ErrorTypeNotFound},
		{"Profile priv is private", ErrorTypeLoginRequired},
		{"Login required", ErrorTypeLoginRequired},
		{"connection reset by peer", ErrorTypeNetwork},
		{"i/o timeout", ErrorTypeNetwork},
		{"unexpected EOF", ErrorTypeNetwork},
		{"something odd happened", ErrorTypeUnknown},
		{"", ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMessage(tt.msg))
		})
	}
}

func TestClassifyOrder(t *testing.T) {
	// challenge beats rate limit and login phrasing
	assert.Equal(t, ErrorTypeChallengeRequired, ClassifyMessage("login failed: challenge_required (429)"))
	// invalid credentials beat login phrasing
	assert.Equal(t, ErrorTypeInvalidCredentials, ClassifyMessage("invalid login"))
	// not found beats private
	assert.Equal(t, ErrorTypeNotFound, ClassifyMessage("private profile not found"))
}

func TestClassifyTypedError(t *testing.T) {
	err := fmt.Errorf("resolve profile: %w", New(ErrorTypeRateLimit, 429, "slow down"))
	assert.Equal(t, ErrorTypeRateLimit, Classify(err))

	// an unknown typed error falls back to its message
	err = New(ErrorTypeUnknown, 0, "user was not found")
	assert.Equal(t, ErrorTypeNotFound, Classify(err))

	assert.Equal(t, ErrorType(""), Classify(nil))
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, Classify(context.Canceled))
	assert.Equal(t, ErrorTypeUnknown, Classify(fmt.Errorf("wait: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(Classify(context.DeadlineExceeded)))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrorTypeRateLimit))
	assert.True(t, IsTransient(ErrorTypeNetwork))
	for _, et := range []ErrorType{
		ErrorTypeNotFound, ErrorTypeLoginRequired, ErrorTypeChallengeRequired,
		ErrorTypeCheckpointRequired, ErrorTypeInvalidCredentials, ErrorTypeParsing, ErrorTypeUnknown,
	} {
		assert.False(t, IsTransient(et), string(et))
	}
}

func TestFromStatusCode(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, FromStatusCode(404, "").Type)
	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(429, "").Type)
	assert.Equal(t, ErrorTypeNetwork, FromStatusCode(502, "").Type)
	assert.Equal(t, ErrorTypeLoginRequired, FromStatusCode(401, "{}").Type)
	assert.Equal(t, ErrorTypeChallengeRequired, FromStatusCode(400, `{"message":"challenge_required"}`).Type)
	assert.Equal(t, ErrorTypeCheckpointRequired, FromStatusCode(403, `{"message":"checkpoint_required"}`).Type)
	assert.Equal(t, ErrorTypeUnknown, FromStatusCode(418, "").Type)
	assert.Equal(t, ErrorTypeUnknown, FromStatusCode(400, "{}").Type)
}

func TestFromStatusCodeThrottledBody(t *testing.T) {
	body := `{"message":"Please wait a few minutes before you try again.","require_login":true,"status":"fail"}`
	for _, code := range []int{400, 401, 403} {
		err := FromStatusCode(code, body)
		assert.Equal(t, ErrorTypeRateLimit, err.Type, "status %d", code)
		assert.Equal(t, code, err.Code)
		assert.Equal(t, ErrorTypeRateLimit, Classify(err))
		assert.True(t, IsTransient(Classify(err)))
	}
}

func TestIs(t *testing.T) {
	err := errors.New("Profile x not found")
	assert.True(t, Is(err, ErrorTypeNotFound))
	assert.False(t, Is(nil, ErrorTypeNotFound))
}
