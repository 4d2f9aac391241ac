package cmd

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"auto_blog_publisher/config"
	"auto_blog_publisher/generator"
	"auto_blog_publisher/history"
	"auto_blog_publisher/imagery"
	"auto_blog_publisher/pipeline"
	"auto_blog_publisher/publisher"
	"auto_blog_publisher/render"
)

const defaultConfigFile = "config.yaml"

// geminiOpenAIEndpoint is Gemini's OpenAI-compatible API.
const geminiOpenAIEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai/"

// app is the configuration and logger shared by every command.
type app struct {
	cfg    *config.GlobalConfig
	logger *zap.Logger
	log    *zap.SugaredLogger

	// set from the command line for a single run
	topic  string
	labels []string
}

// newApp loads .env, the config file and the environment, validates the
// result and installs the process logger. Without publish the Blogger
// section is not required.
func newApp(configPath string, preview bool) (*app, error) {
	envFiles, envErr := config.LoadEnv()

	if configPath == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configPath = defaultConfigFile
		}
	}
	cfg, err := config.TryLoadFromDisk(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	errs := cfg.Validate()
	if preview {
		errs = cfg.ValidateForPreview()
	}
	if len(errs) > 0 {
		return nil, errors.Wrap(stderrors.Join(errs...), "invalid config")
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	a := &app{cfg: cfg, logger: logger, log: logger.Sugar()}
	if envErr != nil {
		a.log.Warnw("env file not loaded", "error", envErr)
	}
	a.log.Debugw("configuration loaded", "config_file", configPath, "env_files", envFiles, "llm_provider", cfg.LLM.Provider, "image_provider", cfg.Image.Provider)
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) historyStore() *history.Store {
	return history.NewStore(a.cfg.History.Path,
		history.WithLockWait(a.cfg.History.LockWait),
		history.WithLogger(a.log.Named("history")),
	)
}

// orchestrator wires every component. Without publish the Blogger client
// is replaced by one that refuses, so only Preview is usable.
func (a *app) orchestrator(ctx context.Context, publish bool) (*pipeline.Orchestrator, *history.Store, error) {
	llm, err := buildLLM(a.cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	c := a.cfg.Content
	agent, err := generator.NewAgent(llm, generator.Spec{
		Niche:       c.Niche,
		Language:    c.Language,
		Words:       c.Words,
		Tone:        c.Tone,
		Audience:    c.Audience,
		Constraints: c.Constraints,
	}, a.log.Named("generator"))
	if err != nil {
		return nil, nil, err
	}

	images, err := buildImages(a.cfg.Image, a.log.Named("imagery"))
	if err != nil {
		return nil, nil, err
	}

	renderer, err := render.New(a.cfg.Blogger.Labels)
	if err != nil {
		return nil, nil, err
	}

	var pub pipeline.Publisher = previewOnly{}
	if publish {
		pub, err = buildPublisher(ctx, a.cfg.Blogger, a.log.Named("publisher"))
		if err != nil {
			return nil, nil, err
		}
	}

	p := a.cfg.Pipeline
	loc, err := p.Location()
	if err != nil {
		return nil, nil, err
	}
	retry := pipeline.RetryPolicy{MaxRetries: p.MaxRetries, BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay}
	store := a.historyStore()
	orch, err := pipeline.New(store, agent, images, renderer, pub, pipeline.Config{
		Generation:      retry,
		Publish:         retry,
		CallTimeout:     p.CallTimeout,
		MaxPostsPerDay:  p.MaxPostsPerDay,
		DuplicatePolicy: pipeline.DuplicatePolicy(p.DuplicatePolicy),
		Topic:           a.topic,
		Labels:          a.labels,
		Location:        loc,
	}, a.log.Named("pipeline"))
	if err != nil {
		return nil, nil, err
	}
	return orch, store, nil
}

func buildLLM(cfg *config.LLMConfig) (generator.LLMClient, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, errors.New("llm config missing; please set llm.provider/model/api_key in config")
	}
	settings := &generator.LLMSettings{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
	}
	switch cfg.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek only exposes an OpenAI-compatible API, so base_url is mandatory.
		if cfg.BaseURL == "" {
			return nil, errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "gemini":
		if settings.BaseURL == "" {
			settings.BaseURL = geminiOpenAIEndpoint
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, errors.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

// buildImages returns nil for provider none. Unsplash falls back to the
// curated catalogue.
func buildImages(cfg *config.ImageConfig, logger *zap.SugaredLogger) (pipeline.ImageResolver, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "curated":
		return imagery.NewCurated(), nil
	case "unsplash":
		var opts []imagery.UnsplashOption
		if cfg.BaseURL != "" {
			opts = append(opts, imagery.WithBaseURL(cfg.BaseURL))
		}
		u, err := imagery.NewUnsplash(cfg.AccessKey, cfg.Timeout, opts...)
		if err != nil {
			return nil, err
		}
		return imagery.NewChain(logger, u, imagery.NewCurated()), nil
	default:
		return nil, errors.Errorf("image provider %q not supported", cfg.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg *config.BloggerConfig, logger *zap.SugaredLogger) (*publisher.Publisher, error) {
	tokens, err := publisher.NewTokenSource(ctx, publisher.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
		AccessToken:  cfg.AccessToken,
		TokenFile:    cfg.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	return publisher.New(publisher.Config{
		BlogID:  cfg.BlogID,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, tokens, logger)
}

// previewOnly stands in for the Blogger client when nothing may be published.
type previewOnly struct{}

func (previewOnly) Publish(context.Context, render.Post) (publisher.PostRef, error) {
	return publisher.PostRef{}, &publisher.Error{Kind: publisher.KindValidation, Message: "publishing is disabled in preview mode"}
}
