package webhook

import (
	"fmt"

	"github.com/ethyca-go/privacyrun/internal/rerrors"
)

// ClientError reports a transport failure or non-2xx response invoking a
// webhook: a terminal condition for the privacy request.
type ClientError struct {
	WebhookKey string
	Cause      error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("webhook %q: transport failure: %v", e.WebhookKey, e.Cause)
}

func (e *ClientError) Unwrap() error { return e.Cause }

func (e *ClientError) ErrorKind() rerrors.Kind { return rerrors.KindWebhookClient }

// ValidationError reports a two-way webhook response that did not match the
// expected schema (unknown fields, wrong types): terminal (WebhookValidation
// kind).
type ValidationError struct {
	WebhookKey string
	Detail     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webhook %q: invalid response: %s", e.WebhookKey, e.Detail)
}

func (e *ValidationError) ErrorKind() rerrors.Kind { return rerrors.KindWebhookValidation }

// PauseError signals an explicit halt from a two-way webhook: non-terminal,
// the request moves to paused rather than error.
type PauseError struct {
	WebhookKey string
}

func (e *PauseError) Error() string {
	return fmt.Sprintf("webhook %q requested a halt", e.WebhookKey)
}

func (e *PauseError) ErrorKind() rerrors.Kind { return rerrors.KindPause }
