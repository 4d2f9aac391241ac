package config

import (
	"strings"

	"github.com/pkg/errors"
)

// ContentConfig describes the daily post.
type ContentConfig struct {
	Niche       string   `json:"niche" yaml:"niche"`
	Language    string   `json:"language" yaml:"language"`
	Words       int      `json:"words" yaml:"words"`
	Tone        string   `json:"tone" yaml:"tone"`
	Audience    string   `json:"audience" yaml:"audience"`
	Constraints []string `json:"constraints" yaml:"constraints"`
}

func (c *ContentConfig) Validate() []error {
	var errs = make([]error, 0)
	if strings.TrimSpace(c.Niche) == "" {
		errs = append(errs, errors.New("content.niche is required"))
	}
	if c.Words < 200 || c.Words > 5000 {
		errs = append(errs, errors.Errorf("content.words %d out of range [200, 5000]", c.Words))
	}
	return errs
}

func NewDefaultContentConfig() *ContentConfig {
	return &ContentConfig{
		Niche:    "practical AI tools and productivity",
		Language: "English",
		Words:    1200,
		Tone:     "friendly and practical",
		Audience: "working professionals curious about AI",
	}
}
