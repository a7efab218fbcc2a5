package resputil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitecraft/sitecraft/pkg/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{fmt.Errorf("verify: %w", apperr.ErrUnauthorized), http.StatusUnauthorized, TokenInvalid},
		{fmt.Errorf("webhook: %w", apperr.ErrBadSignature), http.StatusUnauthorized, SignatureInvalid},
		{fmt.Errorf("x: %w", apperr.ErrForbidden), http.StatusForbidden, UserNotAllowed},
		{fmt.Errorf("payment %w", apperr.ErrNotFound), http.StatusNotFound, NotFound},
		{fmt.Errorf("bad: %w", apperr.ErrInvalid), http.StatusBadRequest, InvalidRequest},
		{fmt.Errorf("lost: %w", apperr.ErrConflict), http.StatusConflict, Conflict},
		{fmt.Errorf("gw: %w", apperr.ErrUpstream), http.StatusBadGateway, GatewayError},
		{errors.New("boom"), http.StatusInternalServerError, NotSpecified},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
