package anthropic

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter approximates prompt sizes with the cl100k_base encoding.
// Claude uses its own tokenizer, so counts are an estimate good enough for
// metrics and budget checks.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter loads the cl100k_base codec.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer encoding: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// Count returns the approximate number of tokens in text.
func (t *TokenCounter) Count(text string) (int, error) {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode text: %w", err)
	}
	return len(ids), nil
}
