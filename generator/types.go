package generator

// Spec describes the kind of post the blog publishes every day.
type Spec struct {
	Niche       string
	Language    string
	Words       int
	Tone        string
	Audience    string
	Constraints []string
}

// Request 一次生成请求。ExcludedTopics 仅作提示，调用方仍需对照历史检查主题。
type Request struct {
	// Topic 非空时固定稿件主题。
	Topic          string
	ExcludedTopics []string
	// Rejected 上一次生成的、与历史重复的主题。
	Rejected string
}

// Draft is the generated, not yet published post.
type Draft struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	BodyHTML string   `json:"body_html"`
	Tags     []string `json:"tags,omitempty"`
}
