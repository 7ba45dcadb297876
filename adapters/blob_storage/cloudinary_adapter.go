package blob_storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type cloudinaryAdapter struct {
	cld    *cloudinary.Cloudinary
	client *http.Client
}

func NewCloudinaryAdapter(cfg config.Config, log logger.Logger) (service.BlobStore, error) {
	if cfg.Cloudinary.CloudName == "" {
		return nil, fmt.Errorf("cloudinary cloud_name has not config")
	}

	cld, err := cloudinary.NewFromParams(
		cfg.Cloudinary.CloudName,
		cfg.Cloudinary.ApiKey,
		cfg.Cloudinary.ApiSecret,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot init cloudinary: %w", err)
	}

	log.Info("Cloudinary blob store ready", zap.String("cloud", cfg.Cloudinary.CloudName))
	return &cloudinaryAdapter{cld: cld, client: http.DefaultClient}, nil
}

// Put uploads data as a raw resource. The returned secure URL is the read path.
func (a *cloudinaryAdapter) Put(ctx context.Context, path string, data []byte) (string, error) {
	result, err := a.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:       path,
		ResourceType:   "raw",
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

func (a *cloudinaryAdapter) Get(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "https://") && !strings.HasPrefix(path, "http://") {
		return nil, fmt.Errorf("cloudinary path %q is not a delivery url", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cloudinary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download cloudinary: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
