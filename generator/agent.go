package generator

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrGeneration 匹配 Agent.Generate 的所有失败。
var ErrGeneration = errors.New("content generation failed")

// Agent 负责调用 LLM 生成每日稿件。
type Agent struct {
	llm    LLMClient
	spec   Spec
	logger *zap.SugaredLogger
}

func NewAgent(llm LLMClient, spec Spec, logger *zap.SugaredLogger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Agent{llm: llm, spec: spec, logger: logger}, nil
}

// Generate 请求模型生成一篇新稿件，不做重试（重试由 pipeline 负责）。
func (a *Agent) Generate(ctx context.Context, req Request) (Draft, error) {
	prompt := BuildPrompt(a.spec, req)

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return Draft{}, generationError{cause: err}
	}
	draft, err := PostProcess(raw)
	if err != nil {
		a.logger.Debugw("unusable model reply", "length", len(raw), "error", err)
		return Draft{}, generationError{cause: err}
	}
	if topic := collapse(req.Topic); topic != "" {
		draft.Topic = topic
	}
	a.logger.Infow("draft generated", "topic", draft.Topic, "title", draft.Title, "body_bytes", len(draft.BodyHTML))
	return draft, nil
}

// generationError 同时匹配 ErrGeneration 和原始错误。
type generationError struct{ cause error }

func (e generationError) Error() string   { return ErrGeneration.Error() + ": " + e.cause.Error() }
func (e generationError) Unwrap() []error { return []error{ErrGeneration, e.cause} }
