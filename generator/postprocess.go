package generator

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
)

// ErrMalformed 表示模型回复无法解析为可用稿件。
var ErrMalformed = errors.New("malformed model response")

type modelReply struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
}

var (
	fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	tagRe   = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
)

// PostProcess 解析模型回复为 Draft 并校验必填字段。
func PostProcess(raw string) (Draft, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Draft{}, errors.Wrap(ErrMalformed, "empty reply")
	}

	reply, err := decodeReply(text)
	if err != nil {
		return Draft{}, errors.Wrapf(ErrMalformed, "decode json: %v", err)
	}

	title := collapse(reply.Title)
	if title == "" {
		return Draft{}, errors.Wrap(ErrMalformed, "missing title")
	}
	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return Draft{}, errors.Wrap(ErrMalformed, "missing content")
	}
	if !tagRe.MatchString(content) {
		html, err := mdToHTML(content)
		if err != nil {
			return Draft{}, errors.Wrapf(ErrMalformed, "convert markdown: %v", err)
		}
		content = html
	}

	topic := collapse(reply.Topic)
	if topic == "" {
		topic = title
	}

	return Draft{
		Topic:    topic,
		Title:    title,
		Subtitle: collapse(reply.Subtitle),
		Summary:  collapse(reply.Summary),
		BodyHTML: content,
		Tags:     cleanTags(reply.Tags),
	}, nil
}

// decodeReply 依次尝试：原文、去掉外层代码围栏、截取最外层花括号。
// content 字段内部的代码块不受影响。
func decodeReply(text string) (modelReply, error) {
	var reply modelReply
	err := json.Unmarshal([]byte(text), &reply)
	if err == nil {
		return reply, nil
	}
	if m := fenceRe.FindStringSubmatch(text); len(m) == 2 {
		text = m[1]
		if json.Unmarshal([]byte(text), &reply) == nil {
			return reply, nil
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return reply, err
	}
	reply = modelReply{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return reply, err
	}
	return reply, nil
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimPrefix(collapse(t), "#")
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
