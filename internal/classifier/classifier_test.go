package classifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paleon-app/paleon-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fossil.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644))
	return path
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"classification": "body_fossil"}`,
			expected: `{"classification": "body_fossil"}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "fence with surrounding prose",
			input:    "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps.",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripFences(tt.input))
		})
	}
}

func TestParseResult(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		result := parseResult(`{"classification": "trace_fossil", "confidence": 0.9}`)
		assert.Equal(t, "trace_fossil", result["classification"])
	})

	t.Run("fenced json", func(t *testing.T) {
		result := parseResult("```json\n{\"classification\": \"body_fossil\"}\n```")
		assert.Equal(t, "body_fossil", result["classification"])
	})

	t.Run("unparseable output preserved", func(t *testing.T) {
		result := parseResult("the model rambled instead of answering")
		assert.Equal(t, "the model rambled instead of answering", result["raw_response"])
		assert.Equal(t, "Failed to parse JSON", result["error"])
	})
}

func TestVisionClassifierClassify(t *testing.T) {
	server := chatServer(t, "```json\n{\"classification\": \"body_fossil\", \"confidence\": 0.87}\n```")
	defer server.Close()

	cfg := config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o",
	}
	spec := Spec{ClassificationPrompt: "classify the fossil", OutputFormat: `{"classification": "..."}`}
	c := NewVisionClassifier(cfg, spec, 5*time.Second, testLogger())

	paths := []string{writeTempImage(t), writeTempImage(t)}
	result, err := c.Classify(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, "body_fossil", result["classification"])

	meta, ok := result["_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, meta["num_images_analyzed"])
}

func TestVisionClassifierEmptyResponse(t *testing.T) {
	server := chatServer(t, "")
	defer server.Close()

	cfg := config.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"}
	c := NewVisionClassifier(cfg, Spec{ClassificationPrompt: "p"}, 5*time.Second, testLogger())

	_, err := c.Classify(context.Background(), []string{writeTempImage(t)})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestVisionClassifierProviderDown(t *testing.T) {
	server := chatServer(t, "unused")
	server.Close()

	cfg := config.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"}
	c := NewVisionClassifier(cfg, Spec{ClassificationPrompt: "p"}, time.Second, testLogger())

	_, err := c.Classify(context.Background(), []string{writeTempImage(t)})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestVisionClassifierMissingImage(t *testing.T) {
	cfg := config.OpenAIConfig{APIKey: "test-key", Model: "gpt-4o"}
	c := NewVisionClassifier(cfg, Spec{ClassificationPrompt: "p"}, time.Second, testLogger())

	_, err := c.Classify(context.Background(), []string{"/nonexistent/fossil.jpg"})
	assert.Error(t, err)
}

func TestBuildPromptMultiImageNote(t *testing.T) {
	c := &VisionClassifier{spec: Spec{ClassificationPrompt: "classify", OutputFormat: "{}"}}

	single := c.buildPrompt(1)
	assert.NotContains(t, single, "SAME fossil")

	multi := c.buildPrompt(3)
	assert.Contains(t, multi, "3 images of the SAME fossil")
}

func TestRetrievalExtractor(t *testing.T) {
	server := chatServer(t, "extracted text")
	defer server.Close()

	cfg := config.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"}
	e := NewRetrievalExtractor(cfg, 5*time.Second, testLogger())

	spec, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "extracted text", spec.ClassificationPrompt)
	assert.Equal(t, "extracted text", spec.OutputFormat)
}

func TestFileSource(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompt.yaml")
		content := "classification_prompt: classify the fossil\noutput_format: '{\"classification\": \"...\"}'\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		spec, err := (&FileSource{Path: path}).Extract(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "classify the fossil", spec.ClassificationPrompt)
		assert.NotEmpty(t, spec.OutputFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&FileSource{Path: "/nonexistent/prompt.yaml"}).Extract(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing prompt key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompt.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output_format: '{}'\n"), 0o644))

		_, err := (&FileSource{Path: path}).Extract(context.Background())
		assert.ErrorContains(t, err, "no classification_prompt")
	})
}

func TestMockClassifier(t *testing.T) {
	m := &MockClassifier{}
	result, err := m.Classify(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "body_fossil", result["classification"])

	meta := result["_metadata"].(map[string]any)
	assert.Equal(t, 3, meta["num_images_analyzed"])
}

func TestFactory(t *testing.T) {
	t.Run("mock provider", func(t *testing.T) {
		c, err := New(context.Background(), config.ClassifierConfig{Provider: "mock"}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, "mock", c.Name())
	})

	t.Run("openai with file source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompt.yaml")
		require.NoError(t, os.WriteFile(path, []byte("classification_prompt: p\noutput_format: f\n"), 0o644))

		c, err := New(context.Background(), config.ClassifierConfig{
			Provider:     "openai",
			PromptSource: "file",
			PromptFile:   path,
			OpenAI:       config.OpenAIConfig{APIKey: "k", Model: "gpt-4o"},
		}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, "openai", c.Name())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(context.Background(), config.ClassifierConfig{Provider: "llama"}, testLogger())
		assert.ErrorContains(t, err, "unknown classifier provider")
	})

	t.Run("unknown prompt source", func(t *testing.T) {
		_, err := New(context.Background(), config.ClassifierConfig{Provider: "openai", PromptSource: "carrier-pigeon"}, testLogger())
		assert.ErrorContains(t, err, "unknown prompt source")
	})
}
