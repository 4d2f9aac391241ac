package config

import (
	"time"

	"github.com/pkg/errors"
)

type ImageConfig struct {
	Provider  string        `json:"provider" yaml:"provider"` // unsplash | curated | none
	AccessKey string        `json:"accessKey" yaml:"access_key"`
	BaseURL   string        `json:"baseUrl" yaml:"base_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

func (i *ImageConfig) Validate() []error {
	var errs = make([]error, 0)
	switch i.Provider {
	case "unsplash":
		if i.AccessKey == "" {
			errs = append(errs, errors.New("image.access_key is required for provider unsplash"))
		}
	case "curated", "none":
	default:
		errs = append(errs, errors.Errorf("image provider %q not supported", i.Provider))
	}
	if i.Timeout <= 0 {
		errs = append(errs, errors.New("image.timeout must be positive"))
	}
	return errs
}

func NewDefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		Provider: "curated",
		Timeout:  15 * time.Second,
	}
}
