package runner

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/jsonx"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// AuditPublisher fans ExecutionLog events out to a NATS subject
// asynchronously over a buffered channel drained by a background goroutine:
// publishing never blocks node execution, and a full buffer degrades to a
// synchronous publish rather than dropping the event.
type AuditPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
	events  chan model.ExecutionLog
}

// NewAuditPublisher builds a publisher that emits every ExecutionLog to
// subject on conn. A nil conn yields a publisher whose Publish is a no-op,
// so a Runner can be built without a NATS connection in tests.
func NewAuditPublisher(conn *nats.Conn, subject string, logger *zap.Logger, bufferSize int) *AuditPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	p := &AuditPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.Named("runner.audit"),
		events:  make(chan model.ExecutionLog, bufferSize),
	}
	if conn != nil {
		go p.drain()
	}
	return p
}

func (p *AuditPublisher) drain() {
	for log := range p.events {
		p.publish(log)
	}
}

// Publish enqueues log for async publication, or publishes it synchronously
// if the buffer is momentarily full.
func (p *AuditPublisher) Publish(ctx context.Context, log model.ExecutionLog) {
	if p.conn == nil {
		return
	}
	select {
	case p.events <- log:
	default:
		p.logger.Warn("audit buffer full, publishing synchronously", zap.String("request_id", log.PrivacyRequestID))
		p.publish(log)
	}
}

func (p *AuditPublisher) publish(log model.ExecutionLog) {
	payload, err := jsonx.Marshal(log)
	if err != nil {
		p.logger.Error("failed to encode execution log for audit publish", zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn("failed to publish execution log", zap.Error(err))
	}
}
