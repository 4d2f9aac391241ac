package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type HistoryConfig struct {
	Path     string        `json:"path" yaml:"path"`
	LockWait time.Duration `json:"lockWait" yaml:"lock_wait"`
}

func (h *HistoryConfig) Validate() []error {
	var errs = make([]error, 0)
	if strings.TrimSpace(h.Path) == "" {
		errs = append(errs, errors.New("history.path is required"))
	}
	if h.LockWait <= 0 {
		errs = append(errs, errors.New("history.lock_wait must be positive"))
	}
	return errs
}

func NewDefaultHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Path:     "post_history.json",
		LockWait: 30 * time.Second,
	}
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

func (l *LogConfig) Validate() []error {
	var errs = make([]error, 0)
	if _, err := zap.ParseAtomicLevel(l.Level); err != nil {
		errs = append(errs, errors.Wrap(err, "log.level"))
	}
	return errs
}

// Build creates the process logger.
func (l *LogConfig) Build() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	zc.Level = level
	return zc.Build()
}

func NewDefaultLogConfig() *LogConfig {
	return &LogConfig{Level: "info"}
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

func (s *ServerConfig) Validate() []error {
	var errs = make([]error, 0)
	if s.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errs
}

func NewDefaultServerConfig() *ServerConfig {
	return &ServerConfig{Addr: ":8080"}
}
