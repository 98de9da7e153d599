package attachment

import (
	"context"

	"github.com/smallbiznis/contractdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("attachment.storage",
	fx.Provide(NewStorage),
)

// NewStorage selects the backend from ATTACHMENT_STORAGE.
func NewStorage(cfg config.Config, log *zap.Logger) (Storage, error) {
	switch cfg.Attachments.Backend {
	case config.AttachmentBackendS3:
		log.Info("using s3 attachment storage", zap.String("bucket", cfg.Attachments.S3Bucket))
		return NewS3Storage(context.Background(), S3Config{
			Bucket:   cfg.Attachments.S3Bucket,
			Region:   cfg.Attachments.S3Region,
			Prefix:   cfg.Attachments.S3Prefix,
			Endpoint: cfg.Attachments.S3Endpoint,
		})
	default:
		log.Info("using local attachment storage", zap.String("dir", cfg.Attachments.Dir))
		return NewLocalStorage(cfg.Attachments.Dir), nil
	}
}
