package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kumanday/OmniLearn/internal/domain"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

// Error codes specific to OmniLearn flows.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	CodeMalformedGeneration = "MALFORMED_GENERATION"
	CodeUpstream            = "UPSTREAM_ERROR"
)

// errUnauthenticated is the single outward signal for every failed session
// check.
func errUnauthenticated() error {
	return apperrors.Unauthorized("not authenticated")
}

func errInvalidCredentials() error {
	return apperrors.New(http.StatusUnauthorized, CodeInvalidCredentials,
		"invalid email or password", apperrors.ErrUnauthorized)
}

func errDuplicateAccount() error {
	return apperrors.New(http.StatusConflict, CodeDuplicateAccount,
		"an account with this email already exists", apperrors.ErrAlreadyExists)
}

func errGoogleUnavailable() error {
	return apperrors.ServiceUnavailable("google sign-in is not configured")
}

// generationError maps a failed gateway call or an undecodable reply to a
// 502. Provider details stay in the wrapped chain and out of the message.
func generationError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, domain.ErrMalformedGeneration):
		return apperrors.Upstream(CodeMalformedGeneration, "the model returned malformed content", err)
	default:
		return apperrors.Upstream(CodeUpstream, "content generation failed", fmt.Errorf("generate: %w", err))
	}
}
