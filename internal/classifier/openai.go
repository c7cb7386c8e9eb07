package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paleon-app/paleon-backend/internal/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

// VisionClassifier implements Classifier against the OpenAI chat completions
// API with image inputs.
type VisionClassifier struct {
	cfg    config.OpenAIConfig
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

// NewVisionClassifier creates a VisionClassifier with the given spec.
func NewVisionClassifier(cfg config.OpenAIConfig, spec Spec, timeout time.Duration, logger *slog.Logger) *VisionClassifier {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &VisionClassifier{
		cfg:    cfg,
		spec:   spec,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *VisionClassifier) Name() string { return "openai" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify sends all images of the job together as one multi-image request.
// There is no per-image fan-out; the model sees every view of the fossil at
// once and returns one classification.
func (c *VisionClassifier) Classify(ctx context.Context, imagePaths []string) (map[string]any, error) {
	prompt := c.buildPrompt(len(imagePaths))

	content := []contentPart{{Type: "text", Text: prompt}}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", path, err)
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		content = append(content, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL:    "data:image/jpeg;base64," + encoded,
				Detail: "high",
			},
		})
	}

	raw, err := doChat(ctx, c.client, c.cfg, chatRequest{
		Model:          c.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: content}},
		MaxTokens:      2000,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	result := parseResult(raw)
	result["_metadata"] = map[string]any{
		"num_images_analyzed": len(imagePaths),
	}

	return result, nil
}

func (c *VisionClassifier) buildPrompt(imageCount int) string {
	var multiImageNote string
	if imageCount > 1 {
		multiImageNote = fmt.Sprintf(
			"\n\nNOTE: You are being provided with %d images of the SAME fossil from different angles/views. Analyze ALL images together to make a comprehensive classification decision.\n",
			imageCount,
		)
	}

	return fmt.Sprintf(`%s
%s

IMPORTANT: Return your response in the following format:
%s
Don't add any extra commentary or explanation.
Ensure the output is valid JSON that can be parsed programmatically.
`, c.spec.ClassificationPrompt, multiImageNote, c.spec.OutputFormat)
}

// doChat performs one chat-completions round trip and returns the assistant
// message content.
func doChat(ctx context.Context, client *http.Client, cfg config.OpenAIConfig, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return parsed.Choices[0].Message.Content, nil
}

// parseResult unmarshals the model output, tolerating markdown code fences.
// Unparseable output is preserved under raw_response rather than dropped.
func parseResult(raw string) map[string]any {
	text := stripFences(raw)

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return map[string]any{
			"raw_response": raw,
			"error":        "Failed to parse JSON",
		}
	}
	return result
}

func stripFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return strings.TrimSpace(text)
}
