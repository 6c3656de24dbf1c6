package runner

import (
	"context"

	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/resultstore"
)

// Uploader delivers a completed access request's assembled results
// somewhere a data subject can retrieve them (an encrypted download link, a
// package handed to a fulfillment service, ...). The concrete transport is
// explicitly out of scope; this package only defines the seam the runner
// calls once the post-execution webhooks have completed, whether or not
// every node succeeded.
type Uploader interface {
	Upload(ctx context.Context, requestID string, results map[model.CollectionAddress][]resultstore.Row) error
}

// NoopUploader logs that an upload would have happened and does nothing
// else. It is the default Uploader so a Runner can be exercised without an
// upload collaborator wired in.
type NoopUploader struct {
	logger *zap.Logger
}

// NewNoopUploader builds a NoopUploader.
func NewNoopUploader(logger *zap.Logger) *NoopUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopUploader{logger: logger.Named("runner.upload")}
}

func (u *NoopUploader) Upload(ctx context.Context, requestID string, results map[model.CollectionAddress][]resultstore.Row) error {
	u.logger.Info("access request results ready for upload",
		zap.String("request_id", requestID), zap.Int("collections", len(results)))
	return nil
}
