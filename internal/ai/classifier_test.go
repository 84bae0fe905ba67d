// file: internal/ai/classifier_test.go
// version: 1.0.0
// guid: 8cbeb40d-4074-41f1-8b96-9373e23c6ee7

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			*seen = body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewOpenAIClassifier_Disabled(t *testing.T) {
	assert.False(t, NewOpenAIClassifier(OpenAIOptions{Enabled: true}).IsEnabled())
	assert.False(t, NewOpenAIClassifier(OpenAIOptions{APIKey: "k"}).IsEnabled())

	_, err := NewOpenAIClassifier(OpenAIOptions{}).Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestNewOpenAIClassifier_Defaults(t *testing.T) {
	c := NewOpenAIClassifier(OpenAIOptions{APIKey: "k", Enabled: true})
	assert.True(t, c.IsEnabled())
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestOpenAIClassifier_Complete(t *testing.T) {
	var seen map[string]any
	server := newChatServer(t, "111#Saga#2", &seen)

	c := NewOpenAIClassifier(OpenAIOptions{APIKey: "k", BaseURL: server.URL, Enabled: true})
	answer, err := c.Complete(context.Background(), Directions, "111\nSaga 2\n\n")
	require.NoError(t, err)
	assert.Equal(t, "111#Saga#2", answer)

	assert.Equal(t, "gpt-4o", seen["model"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestUpdateOutdated_EndToEndWithOpenAI(t *testing.T) {
	server := newChatServer(t, "111#Saga#2", nil)
	classifier := NewOpenAIClassifier(OpenAIOptions{APIKey: "k", BaseURL: server.URL, Enabled: true})

	store := outdatedStore(database.Book{ISBN: "111", Title: "Saga 2"})
	var series *string
	var volume *int
	store.UpdateClassificationFunc = func(_ string, s *string, v *int, _ int) error {
		series, volume = s, v
		return nil
	}

	updated, err := NewBatchUpdater(store, classifier).UpdateOutdated(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, updated)
	require.NotNil(t, series)
	assert.Equal(t, "Saga", *series)
	require.NotNil(t, volume)
	assert.Equal(t, 2, *volume)
}
