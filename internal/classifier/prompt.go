package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/paleon-app/paleon-backend/internal/config"
	"gopkg.in/yaml.v3"
)

// extraction queries sent to the retrieval-QA collaborator. The document
// retrieval itself is external; we only ask the questions and take the
// answers as-is.
const (
	classificationPromptQuery = `Based on the master-prompt documentation, create a COMPLETE and DETAILED prompt for classifying fossil images with a vision model.

The prompt must include:
1. What to look for in the image (visual features, characteristics)
2. The decision funnel
3. ALL possible classification categories with their exact definitions
4. Step-by-step classification logic and decision criteria
5. How to handle edge cases or uncertain classifications
6. The EXACT output format (JSON structure with all required fields)
7. Any confidence scoring or validation rules

Format this as a single, ready-to-use prompt.`

	outputFormatQuery = `What is the EXACT JSON output format for classification results?
Provide a JSON schema or example showing:
- All required fields with exact names
- Data types for each field
- Nested structures if any
- Any validation rules`
)

// RetrievalExtractor asks the retrieval-QA service for the classification
// prompt and output format. Runs once at worker startup.
type RetrievalExtractor struct {
	cfg    config.OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewRetrievalExtractor creates a RetrievalExtractor.
func NewRetrievalExtractor(cfg config.OpenAIConfig, timeout time.Duration, logger *slog.Logger) *RetrievalExtractor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RetrievalExtractor{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Extract runs both extraction queries and assembles the Spec.
func (e *RetrievalExtractor) Extract(ctx context.Context) (Spec, error) {
	e.logger.Info("Extracting classification prompt from documentation")

	prompt, err := e.ask(ctx, classificationPromptQuery)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to extract classification prompt: %w", err)
	}

	format, err := e.ask(ctx, outputFormatQuery)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to extract output format: %w", err)
	}

	e.logger.Info("Classification spec extracted",
		slog.Int("prompt_len", len(prompt)),
		slog.Int("format_len", len(format)),
	)

	return Spec{ClassificationPrompt: prompt, OutputFormat: format}, nil
}

func (e *RetrievalExtractor) ask(ctx context.Context, question string) (string, error) {
	return doChat(ctx, e.client, e.cfg, chatRequest{
		Model:       e.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: question}},
		Temperature: 0,
	})
}

// FileSource loads a previously extracted Spec from a YAML file. Used in
// environments where the retrieval collaborator is unavailable.
type FileSource struct {
	Path string
}

type specFile struct {
	ClassificationPrompt string `yaml:"classification_prompt"`
	OutputFormat         string `yaml:"output_format"`
}

// Extract reads and parses the prompt file.
func (f *FileSource) Extract(_ context.Context) (Spec, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read prompt file: %w", err)
	}

	var parsed specFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Spec{}, fmt.Errorf("failed to parse prompt file: %w", err)
	}

	if parsed.ClassificationPrompt == "" {
		return Spec{}, fmt.Errorf("prompt file %s has no classification_prompt", f.Path)
	}

	return Spec{
		ClassificationPrompt: parsed.ClassificationPrompt,
		OutputFormat:         parsed.OutputFormat,
	}, nil
}
