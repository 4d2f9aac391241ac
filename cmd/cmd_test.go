package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_blog_publisher/config"
	"auto_blog_publisher/generator"
	"auto_blog_publisher/imagery"
	"auto_blog_publisher/pipeline"
)

type bloggerPost struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

type fixture struct {
	dir       string
	config    string
	history   string
	published atomic.Int32

	mu    sync.Mutex
	posts []bloggerPost
}

func (f *fixture) lastPost(t *testing.T) bloggerPost {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts)
	return f.posts[len(f.posts)-1]
}

func newFixture(t *testing.T, status int) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}
	f.history = filepath.Join(f.dir, "post_history.json")

	blogger := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blogs/42/posts/", r.URL.Path)
		var post bloggerPost
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		f.mu.Lock()
		f.posts = append(f.posts, post)
		f.mu.Unlock()
		n := f.published.Add(1)
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"id": "p%d", "url": "https://demo.blogspot.com/p%d.html"}`, n, n)
			return
		}
		fmt.Fprint(w, `{"error": {"code": 500, "message": "backend error"}}`)
	}))
	t.Cleanup(blogger.Close)

	body := fmt.Sprintf(`
llm:
  provider: mock
image:
  provider: none
blogger:
  blog_id: "42"
  access_token: test-token
  base_url: %s
pipeline:
  max_retries: 1
  base_delay: 1ms
  max_delay: 2ms
history:
  path: %s
log:
  level: error
`, blogger.URL, f.history)
	f.config = filepath.Join(f.dir, "config.yaml")
	require.NoError(t, os.WriteFile(f.config, []byte(body), 0o644))
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunPublishesThenSkips(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	out, err := execute(t, "--config", f.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Done: published")
	assert.Equal(t, int32(1), f.published.Load())

	out, err = execute(t, "--config", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.Equal(t, int32(1), f.published.Load())

	out, err = execute(t, "--config", f.config, "--force")
	require.NoError(t, err, out)
	assert.Equal(t, int32(2), f.published.Load())

	out, err = execute(t, "--config", f.config, "history", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"identifier": "p1"`)
	assert.Contains(t, out, `"identifier": "p2"`)
}

func TestRunPublishFailureExitsNonZero(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError)

	out, err := execute(t, "--config", f.config)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRunFailed))
	assert.Contains(t, out, "Failed(publish)")
	assert.Equal(t, int32(2), f.published.Load())

	_, statErr := os.Stat(f.history)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDryRunDoesNotPublish(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	out, err := execute(t, "--config", f.config, "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Preview:")
	assert.Contains(t, out, "<article")
	assert.Equal(t, int32(0), f.published.Load())

	_, statErr := os.Stat(f.history)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunWithTopicAndLabels(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	out, err := execute(t, "--config", f.config, "--topic", "  Home   composting ", "--labels", "garden, compost ,,")
	require.NoError(t, err, out)
	post := f.lastPost(t)
	assert.Contains(t, post.Title, "Home composting")
	assert.Equal(t, []string{"garden", "compost"}, post.Labels)

	out, err = execute(t, "--config", f.config, "history", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"topic": "Home composting"`)

	out, err = execute(t, "--config", f.config, "--force", "--topic", "home composting")
	require.NoError(t, err, out)
	assert.Contains(t, out, "topic duplicates an earlier post")
	assert.Equal(t, int32(2), f.published.Load())
}

func TestDryRunWithTopic(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	out, err := execute(t, "--config", f.config, "--dry-run", "--topic", "Bike repair", "--labels", "cycling")
	require.NoError(t, err, out)
	assert.Contains(t, out, `topic="Bike repair"`)
	assert.Equal(t, int32(0), f.published.Load())
}

func TestPreviewFailureNamesTheStep(t *testing.T) {
	err := &pipeline.StepError{Reason: pipeline.ReasonRender, Err: errors.New("template exploded")}
	assert.Equal(t, "Failed(render): template exploded", previewFailure(err))
	assert.Equal(t, "Failed(cancelled): context canceled",
		previewFailure(&pipeline.StepError{Reason: pipeline.ReasonCancelled, Err: context.Canceled}))
	assert.Equal(t, "Failed(generation): boom", previewFailure(errors.New("boom")))
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	out, err := execute(t, "--config", f.config, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no posts published yet")
}

func TestInvalidConfigIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: claude\n"), 0o644))
	_, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "llm provider claude not supported")
}

func TestBuildLLM(t *testing.T) {
	llm, err := buildLLM(&config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	_, err = buildLLM(&config.LLMConfig{Provider: "deepseek", APIKey: "k", Model: "m"})
	assert.Error(t, err)

	llm, err = buildLLM(&config.LLMConfig{Provider: "gemini", APIKey: "k", Model: "gemini-2.0-flash"})
	require.NoError(t, err)
	assert.IsType(t, &generator.OpenAILLM{}, llm)

	_, err = buildLLM(&config.LLMConfig{Provider: "claude"})
	assert.Error(t, err)
	_, err = buildLLM(nil)
	assert.Error(t, err)
}

func TestBuildImages(t *testing.T) {
	r, err := buildImages(&config.ImageConfig{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = buildImages(&config.ImageConfig{Provider: "curated"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &imagery.Curated{}, r)

	r, err = buildImages(&config.ImageConfig{Provider: "unsplash", AccessKey: "k", Timeout: 1}, nil)
	require.NoError(t, err)
	assert.IsType(t, &imagery.Chain{}, r)
}
