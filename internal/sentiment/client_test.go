// internal/sentiment/client_test.go
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-issue-sentiment/internal/kv"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore { return &memoryStore{data: map[string][]byte{}} }

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

const positive = `{
	"analyzed_text": "Great!",
	"polarity": 0.8,
	"subjectivity": 0.75,
	"breakdown": [{"sentence": "Great!", "polarity": 0.8, "subjectivity": 0.75}]
}`

func TestClient_Analyze(t *testing.T) {
	t.Run("posts the text and decodes the result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/analyze", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Great!", body["text"])

			fmt.Fprint(w, positive)
		}))
		defer server.Close()

		client := NewClient(server.URL+"/", testLogger(), WithToken("secret"))
		s := client.Analyze(context.Background(), "Great!")

		require.NotNil(t, s)
		assert.Equal(t, 0.8, s.Polarity)
		assert.Equal(t, "Great!", s.AnalyzedText)
		require.Len(t, s.Breakdown, 1)
		assert.Equal(t, 0.75, s.Breakdown[0].Subjectivity)
	})

	t.Run("returns nil on a non-200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		assert.Nil(t, NewClient(server.URL, testLogger()).Analyze(context.Background(), "text"))
	})

	t.Run("uses the supplied http client", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, positive)
		}))
		defer server.Close()

		// the default client rejects the test certificate
		assert.Nil(t, NewClient(server.URL, testLogger()).Analyze(context.Background(), "Great!"))

		s := NewClient(server.URL, testLogger(), WithHTTPClient(server.Client())).Analyze(context.Background(), "Great!")
		require.NotNil(t, s)
		assert.Equal(t, 0.8, s.Polarity)
	})

	t.Run("returns nil when the classifier is unreachable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", testLogger(), WithTimeout(time.Second))

		assert.Nil(t, client.Analyze(context.Background(), "text"))
	})

	t.Run("returns nil for scores outside the contract", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"analyzed_text": "x", "polarity": 3, "subjectivity": 0.5, "breakdown": []}`)
		}))
		defer server.Close()

		assert.Nil(t, NewClient(server.URL, testLogger()).Analyze(context.Background(), "x"))
	})

	t.Run("serves repeated texts from the cache", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, positive)
		}))
		defer server.Close()

		cache := newMemoryStore()
		client := NewClient(server.URL, testLogger(), WithCache(cache, time.Hour))

		first := client.Analyze(context.Background(), "Great!")
		second := client.Analyze(context.Background(), "Great!")

		require.NotNil(t, first)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Len(t, cache.data, 1)
	})

	t.Run("does not cache failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cache := newMemoryStore()
		client := NewClient(server.URL, testLogger(), WithCache(cache, time.Hour))

		assert.Nil(t, client.Analyze(context.Background(), "text"))
		assert.Empty(t, cache.data)
	})
}
