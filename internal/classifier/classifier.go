// Package classifier wraps the vision-model call that turns fossil images
// into a structured classification. The prompt and output format are
// extracted once at process start and injected; nothing here holds lazy
// global state.
package classifier

import (
	"context"
	"errors"
)

var (
	ErrProviderUnavailable = errors.New("classifier provider unavailable")
	ErrEmptyResponse       = errors.New("classifier returned empty response")
)

// Spec carries the instructions driving the vision call: the classification
// prompt extracted from the master-prompt document and the exact output
// format the model must produce.
type Spec struct {
	ClassificationPrompt string
	OutputFormat         string
}

// Classifier classifies one set of images of the same fossil as a single
// multi-image request. Implementations must be safe for concurrent use.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, imagePaths []string) (map[string]any, error)
}

// PromptSource produces the Spec. Called once at worker startup.
type PromptSource interface {
	Extract(ctx context.Context) (Spec, error)
}
