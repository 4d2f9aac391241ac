package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockLLM 本地调试用的占位实现，不调用外部模型。
// 指定了主题就写该主题，否则从固定列表中挑一个未发布过的主题。
type MockLLM struct{}

var mockTopics = []string{
	"Prompt engineering checklists",
	"Automating weekly reports",
	"Choosing a note-taking system",
	"Keyboard shortcuts that save an hour",
	"Backing up a laptop properly",
	"Writing better commit messages",
	"Planning a focused work week",
}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt.User))
	start := int(h.Sum32() % uint32(len(mockTopics)))

	topic, ok := requestedTopic(prompt.User)
	if !ok {
		topic = pickTopic(strings.ToLower(prompt.User), start)
	}

	reply := map[string]any{
		"topic":    topic,
		"title":    topic + ": a practical guide",
		"subtitle": "Generated offline by the mock model",
		"summary":  "A short walkthrough of " + strings.ToLower(topic) + ".",
		"content": "## Why it matters\n\n" + topic + " pays off quickly.\n\n" +
			"## Getting started\n\n- Start small\n- Measure the result\n- Keep what works\n",
		"tags": []string{"productivity", "guide"},
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(out) + "\n```", nil
}

func requestedTopic(user string) (string, bool) {
	for _, line := range strings.Split(user, "\n") {
		if t, ok := strings.CutPrefix(line, topicLinePrefix); ok && t != "" {
			return t, true
		}
	}
	return "", false
}

func pickTopic(lowerPrompt string, start int) string {
	for i := 0; i < len(mockTopics); i++ {
		candidate := mockTopics[(start+i)%len(mockTopics)]
		if !strings.Contains(lowerPrompt, "- "+strings.ToLower(candidate)+"\n") &&
			!strings.Contains(lowerPrompt, fmt.Sprintf("%q", strings.ToLower(candidate))) {
			return candidate
		}
	}
	return mockTopics[start]
}
