package blob_storage

import (
	"context"
	"fmt"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const (
	ProviderCloudinary = "cloudinary"
	ProviderS3         = "s3"
)

// New builds the blob store named by storage.provider.
func New(ctx context.Context, cfg config.Config, log logger.Logger) (service.BlobStore, error) {
	switch cfg.Storage.Provider {
	case ProviderCloudinary, "":
		return NewCloudinaryAdapter(cfg, log)
	case ProviderS3:
		return NewS3Adapter(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
