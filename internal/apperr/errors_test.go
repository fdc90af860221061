package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrappedChain(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("vote: %w", Wrap(CodeVoteRejected, "server said no", cause))

	assert.Equal(t, CodeVoteRejected, CodeOf(err))
	assert.True(t, HasCode(err, CodeVoteRejected))
	assert.False(t, HasCode(err, CodeUnauthenticated))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnknown, CodeOf(cause))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodePostLimitReached, http.StatusForbidden},
		{CodeVoteInFlight, http.StatusConflict},
		{CodeVoteRejected, http.StatusBadGateway},
		{CodePaymentDeclined, http.StatusPaymentRequired},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

type fakeUpstream struct {
	status int
	reason string
}

func (f *fakeUpstream) Error() string   { return "upstream" }
func (f *fakeUpstream) HTTPStatus() int { return f.status }
func (f *fakeUpstream) Reason() string  { return f.reason }

func TestResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   Code
		wantMsg    string
	}{
		{"app error", New(CodeForbidden, "admins only"), http.StatusForbidden, CodeForbidden, "admins only"},
		{"upstream not found", fmt.Errorf("get: %w", &fakeUpstream{404, "post not found"}), http.StatusNotFound, CodeNotFound, "post not found"},
		{"upstream conflict without reason", &fakeUpstream{409, ""}, http.StatusConflict, CodeConflict, "Conflict"},
		{"upstream 500", &fakeUpstream{500, "boom"}, http.StatusBadGateway, CodeNetworkRejected, "boom"},
		{"unknown hides message", errors.New("pq: secret detail"), http.StatusInternalServerError, CodeUnknown, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Response(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
		})
	}
}
