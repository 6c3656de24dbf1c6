package model

import "sort"

// WebhookDirection controls whether the runner waits for and acts on a
// webhook's response payload.
type WebhookDirection string

const (
	// DirectionOneWay fires the webhook and only waits for the transport
	// acknowledgement; the response body (if any) is discarded.
	DirectionOneWay WebhookDirection = "one_way"
	// DirectionTwoWay awaits a structured WebhookResponse the runner can
	// act on (halt, merge derived identity values).
	DirectionTwoWay WebhookDirection = "two_way"
)

// WebhookKind distinguishes a policy's two ordered webhook lists.
type WebhookKind string

const (
	WebhookPreExecution  WebhookKind = "pre_execution"
	WebhookPostExecution WebhookKind = "post_execution"
)

// Webhook is one external callout a policy fires during a privacy request
// run. Order is dense and zero-based within its Kind's list; the owning
// Policy is responsible for keeping it that way as webhooks are added or
// removed.
type Webhook struct {
	Key           string
	Name          string
	ConnectionRef string
	Direction     WebhookDirection
	Order         int
}

// NormalizeWebhookOrder sorts webhooks by their current Order and
// reassigns a dense, zero-based Order to each, since order must stay dense
// and the runner enforces that by reassignment on create/update. Callers
// invoke this after any add/remove/reorder.
func NormalizeWebhookOrder(webhooks []Webhook) []Webhook {
	out := append([]Webhook(nil), webhooks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i
	}
	return out
}

// Webhooks returns p's webhooks of the given kind, in Order.
func (p Policy) Webhooks(kind WebhookKind) []Webhook {
	switch kind {
	case WebhookPreExecution:
		return p.PreWebhooks
	case WebhookPostExecution:
		return p.PostWebhooks
	default:
		return nil
	}
}
