package config

import (
	"time"

	"github.com/pkg/errors"
)

type PipelineConfig struct {
	MaxRetries  int           `json:"maxRetries" yaml:"max_retries"`
	BaseDelay   time.Duration `json:"baseDelay" yaml:"base_delay"`
	MaxDelay    time.Duration `json:"maxDelay" yaml:"max_delay"`
	CallTimeout time.Duration `json:"callTimeout" yaml:"call_timeout"`
	// MaxPostsPerDay of 0 disables the daily guard.
	MaxPostsPerDay  int    `json:"maxPostsPerDay" yaml:"max_posts_per_day"`
	DuplicatePolicy string `json:"duplicatePolicy" yaml:"duplicate_policy"` // proceed | fail
	// Timezone is an IANA name deciding which calendar day a run belongs to.
	Timezone string `json:"timezone" yaml:"timezone"`
}

func (p *PipelineConfig) Validate() []error {
	var errs = make([]error, 0)
	if p.MaxRetries < 0 || p.MaxRetries > 10 {
		errs = append(errs, errors.Errorf("pipeline.max_retries %d out of range [0, 10]", p.MaxRetries))
	}
	if p.BaseDelay <= 0 {
		errs = append(errs, errors.New("pipeline.base_delay must be positive"))
	}
	if p.MaxDelay < p.BaseDelay {
		errs = append(errs, errors.New("pipeline.max_delay must not be shorter than base_delay"))
	}
	if p.CallTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.call_timeout must be positive"))
	}
	if p.MaxPostsPerDay < 0 {
		errs = append(errs, errors.New("pipeline.max_posts_per_day must not be negative"))
	}
	if p.DuplicatePolicy != "proceed" && p.DuplicatePolicy != "fail" {
		errs = append(errs, errors.Errorf("pipeline.duplicate_policy %q must be proceed or fail", p.DuplicatePolicy))
	}
	if _, err := p.Location(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Location resolves Timezone; empty means the local zone.
func (p *PipelineConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline.timezone %q", p.Timezone)
	}
	return loc, nil
}

func NewDefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxRetries:      3,
		BaseDelay:       2 * time.Second,
		MaxDelay:        30 * time.Second,
		CallTimeout:     2 * time.Minute,
		MaxPostsPerDay:  1,
		DuplicatePolicy: "proceed",
	}
}
