// Package webhook drives the ordered pre/post-execution webhook lists a
// Policy carries: firing one_way callouts without waiting on a response
// body, awaiting and validating two_way responses, and translating an
// explicit halt into a pause of the owning privacy request.
package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/jsonx"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// Transport sends one webhook's payload to its connection and returns the
// raw response body. Concrete network transport (TLS, retries, connection
// pooling) is an application concern outside this package;
// Transport is the seam a caller wires a real HTTP(S) client into.
type Transport interface {
	Send(ctx context.Context, connectionRef string, payload Payload) (respBody []byte, err error)
}

// Payload is the envelope sent to every webhook, one_way or two_way.
type Payload struct {
	PrivacyRequestID string           `json:"privacy_request_id"`
	WebhookKey       string           `json:"webhook_key"`
	Direction        string           `json:"direction"`
	Identity         model.Identity   `json:"identity"`
}

// Response is the structured body a two_way webhook may reply with.
// Unknown fields are rejected by decodeResponse rather than
// silently ignored.
type Response struct {
	DerivedIdentity model.Identity `json:"derived_identity,omitempty"`
	Halt            *bool          `json:"halt,omitempty"`
}

var allowedResponseFields = map[string]bool{
	"derived_identity": true,
	"halt":             true,
}

// decodeResponse parses raw as a Response, rejecting any top-level key
// outside allowedResponseFields. sonic has no DisallowUnknownFields option,
// so the schema check is done explicitly against a decoded field set
// first, rejecting unknown fields without adding a second JSON library for
// it.
func decodeResponse(raw []byte) (Response, error) {
	var fields map[string]any
	if err := jsonx.Unmarshal(raw, &fields); err != nil {
		return Response{}, fmt.Errorf("malformed JSON response: %w", err)
	}
	for key := range fields {
		if !allowedResponseFields[key] {
			return Response{}, fmt.Errorf("unknown response field %q", key)
		}
	}

	var resp Response
	if err := jsonx.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("response does not match expected schema: %w", err)
	}
	return resp, nil
}

// Outcome is what running one ordered webhook list produced.
type Outcome struct {
	// Proceed is false whenever the caller must stop driving the request
	// forward: either it errored, or an explicit halt paused it.
	Proceed bool
	// Paused is true iff a two_way webhook asked to halt.
	Paused bool
	// PausedAfter is the Key of the last webhook that completed before the
	// pause, so resume can pick up with run_webhooks(kind, after=...).
	PausedAfter string
	// DerivedIdentity accumulates every two_way response's derived_identity
	// entries, to be merged into the request's identity map by the caller.
	DerivedIdentity model.Identity
}

// Runner fires the webhooks of one kind in order, via Transport.
type Runner struct {
	transport Transport
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRunner builds a Runner. timeout bounds every individual webhook call;
// expiry is reported as a ClientError.
func NewRunner(transport Transport, timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{transport: transport, timeout: timeout, logger: logger.Named("webhook")}
}

// Run fires webhooks in Order, starting strictly after the one keyed by
// after (empty string runs the whole list from the start). It stops at the
// first failure or halt and reports which webhook, if any, the list paused
// after.
func (r *Runner) Run(ctx context.Context, requestID string, webhooks []model.Webhook, after string) Outcome {
	start := 0
	if after != "" {
		for i, w := range webhooks {
			if w.Key == after {
				start = i + 1
				break
			}
		}
	}

	derived := model.Identity{}
	for _, w := range webhooks[start:] {
		reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
		body, err := r.transport.Send(reqCtx, w.ConnectionRef, Payload{
			PrivacyRequestID: requestID,
			WebhookKey:       w.Key,
			Direction:        string(w.Direction),
			Identity:         derived,
		})
		cancel()
		if err != nil {
			r.logger.Error("webhook transport failure", zap.String("webhook", w.Key), zap.Error(err))
			return Outcome{Proceed: false, DerivedIdentity: derived}
		}

		if w.Direction != model.DirectionTwoWay {
			r.logger.Info("one_way webhook fired", zap.String("webhook", w.Key))
			continue
		}

		resp, err := decodeResponse(body)
		if err != nil {
			r.logger.Error("webhook response failed validation", zap.String("webhook", w.Key), zap.Error(err))
			return Outcome{Proceed: false, DerivedIdentity: derived}
		}

		for k, v := range resp.DerivedIdentity {
			derived[k] = v
		}

		if resp.Halt != nil && *resp.Halt {
			r.logger.Info("webhook requested halt", zap.String("webhook", w.Key))
			return Outcome{Proceed: false, Paused: true, PausedAfter: w.Key, DerivedIdentity: derived}
		}

		r.logger.Info("two_way webhook fired", zap.String("webhook", w.Key))
	}

	return Outcome{Proceed: true, DerivedIdentity: derived}
}
