package blob

import (
	"context"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Driver        Driver
	FSRoot        string
	PublicBaseURL string
	S3            S3Config
}

// Open returns the Store for cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, cfg.PublicBaseURL)
	case DriverS3:
		s3cfg := cfg.S3
		if s3cfg.PublicBaseURL == "" {
			s3cfg.PublicBaseURL = cfg.PublicBaseURL
		}
		return NewS3(ctx, s3cfg)
	case DriverMemory:
		return NewMemory(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
