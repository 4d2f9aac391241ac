package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id, topic string, at time.Time) Record {
	return Record{
		Identifier:  id,
		Topic:       topic,
		Title:       "Title for " + topic,
		PublishedAt: at,
		PostURL:     "https://example.blogspot.com/" + id,
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "post_history.json"))
	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.False(t, s.Contains("anything"))
}

func TestLoadCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path)
	records, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageCorrupt))
	assert.Empty(t, records)
	assert.Empty(t, s.Records())
}

func TestAppendThenLoadPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "post_history.json")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s := NewStore(path)
	_, err := s.Load()
	require.NoError(t, err)
	for i, topic := range []string{"coffee brewing", "sourdough", "bike repair"} {
		require.NoError(t, s.Append(sampleRecord(topic[:3], topic, base.AddDate(0, 0, i))))
	}
	extra := sampleRecord("new", "home composting", base.AddDate(0, 0, 5))
	require.NoError(t, s.Append(extra))

	reloaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, reloaded, 4)
	assert.Equal(t, []string{"coffee brewing", "sourdough", "bike repair", "home composting"},
		[]string{reloaded[0].Topic, reloaded[1].Topic, reloaded[2].Topic, reloaded[3].Topic})
	assert.Equal(t, extra.Identifier, reloaded[3].Identifier)
	assert.True(t, extra.PublishedAt.Equal(reloaded[3].PublishedAt))
	assert.Equal(t, extra.PostURL, reloaded[3].PostURL)
	assert.Equal(t, []string{"coffee brewing", "sourdough", "bike repair", "home composting"}, s.Topics())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"post_history.json", "post_history.json.lock"}, names, "no temp files left behind")
}

func TestAppendCreatesMissingParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "blog", "post_history.json")

	s := NewStore(path)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Append(sampleRecord("p1", "first post", time.Now())))

	records, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "first post", records[0].Topic)
}

func TestAppendMergesRecordsWrittenByAnotherStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	now := time.Now().UTC()

	first := NewStore(path)
	_, err := first.Load()
	require.NoError(t, err)

	second := NewStore(path)
	_, err = second.Load()
	require.NoError(t, err)

	require.NoError(t, first.Append(sampleRecord("a", "alpha", now)))
	require.NoError(t, second.Append(sampleRecord("b", "beta", now)))

	records, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Topic)
	assert.Equal(t, "beta", records[1].Topic)
	assert.True(t, second.Contains("alpha"))
}

func TestContainsIsCaseInsensitiveAndTrimmed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	s := NewStore(path)
	require.NoError(t, s.Append(sampleRecord("p1", "Coffee  Brewing", time.Now())))

	assert.True(t, s.Contains("coffee brewing"))
	assert.True(t, s.Contains("  COFFEE brewing \n"))
	assert.False(t, s.Contains("coffee"))
	assert.False(t, s.Contains("   "))
}

func holdLock(t *testing.T, path string) *flock.Flock {
	t.Helper()
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	return fl
}

func TestAppendFailsWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	fl := holdLock(t, path)
	defer fl.Unlock()

	s := NewStore(path, WithLockWait(100*time.Millisecond))
	err := s.Append(sampleRecord("p1", "topic", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite))
	assert.True(t, errors.Is(err, ErrLocked))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppendWaitsForSlowWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	fl := holdLock(t, path)
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = fl.Unlock()
	}()

	s := NewStore(path, WithLockWait(5*time.Second))
	require.NoError(t, s.Append(sampleRecord("p1", "topic", time.Now())))
	assert.True(t, s.Contains("topic"))
}

func TestAppendIgnoresLeftoverLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	require.NoError(t, os.WriteFile(path+".lock", []byte("4242\n"), 0o644))

	s := NewStore(path, WithLockWait(100*time.Millisecond))
	require.NoError(t, s.Append(sampleRecord("p1", "topic", time.Now())))
}

func TestAppendMovesCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "post_history.json")
	require.NoError(t, os.WriteFile(path, []byte("[{]"), 0o644))

	s := NewStore(path)
	_, err := s.Load()
	require.ErrorIs(t, err, ErrStorageCorrupt)
	require.NoError(t, s.Append(sampleRecord("p1", "fresh start", time.Now())))

	records, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, records, 1)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoadLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	legacy := `[
  {"timestamp": "2025-06-01T08:30:00.123456", "title": "Old post", "topic": "AI tools", "url": "https://x.blogspot.com/old", "labels": ["AI"], "success": true}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	records, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AI tools", records[0].Topic)
	assert.Equal(t, "https://x.blogspot.com/old", records[0].PostURL)
	assert.Equal(t, 2025, records[0].PublishedAt.Year())
	assert.Equal(t, 30, records[0].PublishedAt.Minute())
}

func TestUnreadableTimestampKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	legacy := `[
  {"timestamp": "last tuesday", "title": "Odd post", "topic": "AI tools", "url": "https://x.blogspot.com/odd"},
  {"timestamp": "2025-06-02T08:30:00", "title": "Fine post", "topic": "Prompting", "url": "https://x.blogspot.com/fine"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := NewStore(path)
	records, err := s.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].PublishedAt.IsZero())
	assert.True(t, s.Contains("ai tools"))

	require.NoError(t, s.Append(sampleRecord("p3", "new topic", time.Now())))
	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"publishedAt": "last tuesday"`)

	reloaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, reloaded, 3)
	assert.Equal(t, "AI tools", reloaded[0].Topic)
}

func TestCountOn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post_history.json")
	loc := time.FixedZone("KST", 9*3600)
	day := time.Date(2026, 5, 10, 12, 0, 0, 0, loc)

	s := NewStore(path)
	require.NoError(t, s.Append(sampleRecord("a", "one", day.Add(-24*time.Hour))))
	require.NoError(t, s.Append(sampleRecord("b", "two", day.Add(-3*time.Hour))))

	assert.Equal(t, 1, s.CountOn(day, loc))
	assert.Equal(t, 0, s.CountOn(day.AddDate(0, 0, 1), loc))
}
