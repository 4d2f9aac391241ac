package generator

import (
	"fmt"
	"strings"
)

// maxExcludedInPrompt 限制写入提示词的历史主题数量。
const maxExcludedInPrompt = 50

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System string
	User   string
}

const topicLinePrefix = "Topic: "

const systemPrompt = "You are a professional blogger. Reply with a single JSON object and nothing else."

// BuildPrompt 生成每日稿件的提示词。
func BuildPrompt(spec Spec, req Request) Prompt {
	var sb strings.Builder
	niche := spec.Niche
	if niche == "" {
		niche = "practical technology"
	}
	sb.WriteString(fmt.Sprintf("Write today's blog post for a blog about %s.\n", niche))
	if topic := collapse(req.Topic); topic != "" {
		sb.WriteString(topicLinePrefix + topic + "\n")
		sb.WriteString("Use exactly this topic in the topic field.\n")
	} else {
		sb.WriteString("Pick a fresh, specific topic yourself.\n")
	}
	sb.WriteString("Requirements:\n")
	if spec.Language != "" {
		sb.WriteString(fmt.Sprintf("- Write in %s.\n", spec.Language))
	}
	if spec.Words > 0 {
		sb.WriteString(fmt.Sprintf("- About %d words (±15%%).\n", spec.Words))
	}
	if spec.Tone != "" {
		sb.WriteString(fmt.Sprintf("- Tone: %s.\n", spec.Tone))
	}
	if spec.Audience != "" {
		sb.WriteString(fmt.Sprintf("- Audience: %s.\n", spec.Audience))
	}
	for _, c := range spec.Constraints {
		sb.WriteString(fmt.Sprintf("- %s\n", c))
	}
	sb.WriteString("- An engaging introduction, 3-4 sections with concrete examples, practical tips, a short summary.\n")
	sb.WriteString("- content is HTML using only p, h2, h3, ul, ol, li, strong, em, blockquote, code, pre and a tags. No inline styles, no scripts.\n")

	excluded := recent(req.ExcludedTopics, maxExcludedInPrompt)
	if len(excluded) > 0 {
		sb.WriteString("Topics already published (do not repeat them or close variants):\n")
		for _, t := range excluded {
			sb.WriteString(fmt.Sprintf("- %s\n", t))
		}
	}
	if req.Rejected != "" {
		sb.WriteString(fmt.Sprintf("Your previous suggestion %q was already published. Choose a clearly different topic.\n", req.Rejected))
	}

	sb.WriteString(`Respond with JSON of the form:
{"topic": "...", "title": "...", "subtitle": "...", "summary": "one sentence", "content": "<p>...</p>", "tags": ["...", "..."]}`)

	return Prompt{
		System: systemPrompt,
		User:   sb.String(),
	}
}

func recent(topics []string, limit int) []string {
	var out []string
	for i := len(topics) - 1; i >= 0 && len(out) < limit; i-- {
		t := strings.TrimSpace(topics[i])
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
