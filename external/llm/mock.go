package llm

import (
	"context"
	"fmt"

	"github.com/foxseedlab/chumon/internal/model"
)

// MockClient echoes the new text back. It lets the backend run without an
// API key when MODEL_BACKEND=mock.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(_ context.Context, req model.Request) (*model.Response, error) {
	return &model.Response{
		Text: fmt.Sprintf("You said %q. Anything else for your order?", req.NewText),
	}, nil
}
