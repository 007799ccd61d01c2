package pipeline

import (
	"context"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// SignalSource returns the current raw signals for a region. Transport
// failures wrap domain.ErrSourceUnavailable.
type SignalSource interface {
	Fetch(ctx context.Context, regionID string) (domain.RawSignalSnapshot, error)
}

// BlobStore is a create-only key-value store. Put fails with
// domain.ErrKeyExists when the key is taken; Get fails with
// domain.ErrNotFound when it is absent. List returns the keys under a
// prefix in sorted order.
type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// TextGenerator turns a prompt into text. Failures wrap
// domain.ErrBackendUnavailable or domain.ErrBackendTimeout.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// TokenCounter estimates the token length of a prompt.
type TokenCounter interface {
	Count(text string) (int, error)
}
