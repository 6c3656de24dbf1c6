// Package rerrors defines the closed error taxonomy shared across the
// dataset graph, query config, masking, connector, webhook, and runner
// packages, so the runner can branch on error kind with errors.As instead of
// matching on message strings.
package rerrors

// Kind is one of the error categories a privacy request run can fail with.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindGraphReference      Kind = "graph_reference"
	KindTraversalIncomplete Kind = "traversal_incomplete"
	KindBackendExecution    Kind = "backend_execution"
	KindAccessDenied        Kind = "access_denied"
	KindWebhookClient       Kind = "webhook_client"
	KindWebhookValidation   Kind = "webhook_validation"
	KindPause               Kind = "pause"
)

// Error is a taxonomy-tagged error. The datagraph, masking, webhook, and
// connector error types implement it (repository.NotFoundError and
// datasetdef.ParseError do not), so callers can do:
//
//	var rerr rerrors.Error
//	if errors.As(err, &rerr) && rerr.ErrorKind() == rerrors.KindAccessDenied { ... }
type Error interface {
	error
	ErrorKind() Kind
}

// TaggedError is a generic carrier for a kind and a message, used by
// packages that do not need a richer error struct of their own.
type TaggedError struct {
	Kind    Kind
	Message string
}

func (e *TaggedError) Error() string { return e.Message }

func (e *TaggedError) ErrorKind() Kind { return e.Kind }

// New constructs a TaggedError.
func New(kind Kind, message string) *TaggedError {
	return &TaggedError{Kind: kind, Message: message}
}
