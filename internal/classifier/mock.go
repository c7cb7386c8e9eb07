package classifier

import (
	"context"
	"time"
)

// MockClassifier returns a canned classification without calling any external
// service. Used for local development and tests.
type MockClassifier struct {
	Delay time.Duration
}

func (m *MockClassifier) Name() string { return "mock" }

// Classify returns a fixed result after the configured delay.
func (m *MockClassifier) Classify(ctx context.Context, imagePaths []string) (map[string]any, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return map[string]any{
		"classification": "body_fossil",
		"confidence":     0.42,
		"reasoning":      "mock classification",
		"_metadata": map[string]any{
			"num_images_analyzed": len(imagePaths),
		},
	}, nil
}

// StaticSource returns a fixed Spec. Used for tests.
type StaticSource struct {
	Spec Spec
}

func (s *StaticSource) Extract(_ context.Context) (Spec, error) {
	return s.Spec, nil
}
