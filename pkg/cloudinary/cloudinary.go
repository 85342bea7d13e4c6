package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores binary artifacts in Cloudinary and hands back their secure URL.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Store uploads data under objectPath. Re-storing the same path replaces the asset.
func (s *Service) Store(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     BuildPublicID(objectPath),
		ResourceType: resourceType(contentType),
		Overwrite:    api.Bool(false),
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Int("bytes", len(data)).Msg("artifact stored in cloudinary")

	return result.SecureURL, nil
}

// BuildPublicID turns a storage path such as "certificate/S1_C1.pdf" into a
// Cloudinary public id ("certificate/S1_C1").
func BuildPublicID(objectPath string) string {
	cleaned := strings.Trim(path.Clean("/"+objectPath), "/")
	cleaned = strings.TrimSuffix(cleaned, path.Ext(cleaned))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		switch r {
		case '/', '_', '-':
			return r
		}
		return '-'
	}, cleaned)
}

func resourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"), contentType == "application/pdf":
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "raw"
	}
}
