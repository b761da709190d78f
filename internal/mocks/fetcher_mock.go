package mocks

import (
	"context"
	"time"

	"github.com/GauravPawar101/Validate-me/pkg/fetch"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the fetch.Fetcher interface
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*fetch.Response, error) {
	args := m.Called(ctx, url, timeout)
	resp, _ := args.Get(0).(*fetch.Response)
	return resp, args.Error(1)
}
