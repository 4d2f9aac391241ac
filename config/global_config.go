// Package config loads the publisher configuration from a YAML file, the
// process environment and an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BLOGPUB_LLM_API_KEY.
const EnvPrefix = "BLOGPUB"

type IConfig interface {
	Validate() []error
}

type GlobalConfig struct {
	LLM      *LLMConfig      `json:"llm" yaml:"llm"`
	Content  *ContentConfig  `json:"content" yaml:"content"`
	Image    *ImageConfig    `json:"image" yaml:"image"`
	Blogger  *BloggerConfig  `json:"blogger" yaml:"blogger"`
	Pipeline *PipelineConfig `json:"pipeline" yaml:"pipeline"`
	History  *HistoryConfig  `json:"history" yaml:"history"`
	Log      *LogConfig      `json:"log" yaml:"log"`
	Server   *ServerConfig   `json:"server" yaml:"server"`
}

// Validate reports every problem at once.
func (g *GlobalConfig) Validate() []error {
	errs := g.ValidateForPreview()
	return append(errs, validateSection("blogger", g.Blogger, g.Blogger == nil)...)
}

// ValidateForPreview skips the Blogger section, which a dry run never uses.
func (g *GlobalConfig) ValidateForPreview() []error {
	var errs = make([]error, 0)
	sections := []struct {
		name    string
		cfg     IConfig
		missing bool
	}{
		{"llm", g.LLM, g.LLM == nil},
		{"content", g.Content, g.Content == nil},
		{"image", g.Image, g.Image == nil},
		{"pipeline", g.Pipeline, g.Pipeline == nil},
		{"history", g.History, g.History == nil},
		{"log", g.Log, g.Log == nil},
		{"server", g.Server, g.Server == nil},
	}
	for _, s := range sections {
		errs = append(errs, validateSection(s.name, s.cfg, s.missing)...)
	}
	return errs
}

func validateSection(name string, c IConfig, missing bool) []error {
	if missing {
		return []error{errors.Errorf("%s section is missing", name)}
	}
	return c.Validate()
}

func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LLM:      NewDefaultLLMConfig(),
		Content:  NewDefaultContentConfig(),
		Image:    NewDefaultImageConfig(),
		Blogger:  NewDefaultBloggerConfig(),
		Pipeline: NewDefaultPipelineConfig(),
		History:  NewDefaultHistoryConfig(),
		Log:      NewDefaultLogConfig(),
		Server:   NewDefaultServerConfig(),
	}
}

// LoadEnv loads .env files from the working directory and returns the
// ones it read. Variables already set in the process environment win.
func LoadEnv() ([]string, error) {
	loaded := make([]string, 0, 1)
	for _, file := range []string{".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, errors.Wrapf(err, "load %s", file)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// TryLoadFromDisk reads configFilePath (YAML) over the defaults and applies
// BLOGPUB_* environment overrides. An empty path uses defaults and the
// environment only.
func TryLoadFromDisk(configFilePath string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, NewDefaultGlobalConfig())

	tagName := "yaml"
	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return nil, err
		}
		dir, file := filepath.Split(configFilePath)
		fileType := filepath.Ext(file)
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
		v.SetConfigName(strings.TrimSuffix(file, fileType))
		v.SetConfigType(strings.TrimPrefix(fileType, "."))
		if err := v.ReadInConfig(); err != nil {
			if errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, err
			}
			return nil, errors.Errorf("parse config file %s: %s", configFilePath, err.Error())
		}
		if strings.TrimPrefix(fileType, ".") == "json" {
			tagName = "json"
		}
	}

	cfg := NewDefaultGlobalConfig()
	if err := v.Unmarshal(cfg, func(config *mapstructure.DecoderConfig) {
		config.TagName = tagName
	}); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// registerDefaults makes every key known to viper so that environment
// variables override keys absent from the file.
func registerDefaults(v *viper.Viper, d *GlobalConfig) {
	defaults := map[string]any{
		"llm.provider":    d.LLM.Provider,
		"llm.model":       d.LLM.Model,
		"llm.api_key":     d.LLM.APIKey,
		"llm.base_url":    d.LLM.BaseURL,
		"llm.temperature": d.LLM.Temperature,

		"content.niche":       d.Content.Niche,
		"content.language":    d.Content.Language,
		"content.words":       d.Content.Words,
		"content.tone":        d.Content.Tone,
		"content.audience":    d.Content.Audience,
		"content.constraints": d.Content.Constraints,

		"image.provider":   d.Image.Provider,
		"image.access_key": d.Image.AccessKey,
		"image.base_url":   d.Image.BaseURL,
		"image.timeout":    d.Image.Timeout,

		"blogger.blog_id":       d.Blogger.BlogID,
		"blogger.client_id":     d.Blogger.ClientID,
		"blogger.client_secret": d.Blogger.ClientSecret,
		"blogger.refresh_token": d.Blogger.RefreshToken,
		"blogger.access_token":  d.Blogger.AccessToken,
		"blogger.token_file":    d.Blogger.TokenFile,
		"blogger.labels":        d.Blogger.Labels,
		"blogger.base_url":      d.Blogger.BaseURL,
		"blogger.timeout":       d.Blogger.Timeout,

		"pipeline.max_retries":       d.Pipeline.MaxRetries,
		"pipeline.base_delay":        d.Pipeline.BaseDelay,
		"pipeline.max_delay":         d.Pipeline.MaxDelay,
		"pipeline.call_timeout":      d.Pipeline.CallTimeout,
		"pipeline.max_posts_per_day": d.Pipeline.MaxPostsPerDay,
		"pipeline.duplicate_policy":  d.Pipeline.DuplicatePolicy,
		"pipeline.timezone":          d.Pipeline.Timezone,

		"history.path":      d.History.Path,
		"history.lock_wait": d.History.LockWait,

		"log.level":       d.Log.Level,
		"log.development": d.Log.Development,

		"server.addr": d.Server.Addr,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
