package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

func newReplayClient(t *testing.T, cassetteName string) *http.Client {
	t.Helper()

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", cassetteName), recorder.ModeReplaying, nil)
	require.NoError(t, err)

	// Don't match on request body; prompts are covered by the httptest cases.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})
	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("stop recorder: %v", err)
		}
	})

	return &http.Client{Transport: r}
}

func TestClient_Generate_Replay(t *testing.T) {
	c := NewClient("test-key", WithHTTPClient(newReplayClient(t, "messages_reef_sumatra")))

	features := &domain.FeatureSet{SSTAnomalyC: 1.8, ChlorophyllMgM3: 0.31, PM25UgM3: 20}
	req, err := domain.BuildNarrativeRequest("reef_sumatra", features,
		[]domain.Event{{Type: domain.EventHeatStress, Severity: domain.SeverityHigh}}, 0)
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), req.Prompt, req.MaxTokens)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Off Sumatra the shallows run a fever"))
	assert.Contains(t, text, "because")
}

func TestClient_Generate_SendsMessagesRequest(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"message","content":[{"type":"text","text":"The sea is warm "},{"type":"tool_use"},{"type":"text","text":"because it is."}]}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL+"/"), WithModel("claude-test"))
	text, err := c.Generate(context.Background(), "prompt body", 123)
	require.NoError(t, err)

	assert.Equal(t, "The sea is warm because it is.", text)
	assert.Equal(t, messagesRequest{
		Model:     "claude-test",
		MaxTokens: 123,
		Messages:  []message{{Role: "user", Content: "prompt body"}},
	}, got)
}

func TestClient_Generate_StatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   string
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, domain.KindBackendUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, domain.KindBackendUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, domain.KindBackendUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, ``, domain.KindBackendTimeout},
		{"bad request", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, domain.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body)) //nolint:errcheck // test server
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).Generate(context.Background(), "p", 10)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.Kind(err))
		})
	}
}

func TestClient_Generate_ErrorEnvelopeInMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(529)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Generate(context.Background(), "p", 10)
	assert.ErrorContains(t, err, "overloaded_error: Overloaded")
}

func TestClient_Generate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Generate(context.Background(), "p", 10)
	require.ErrorIs(t, err, domain.ErrBackendTimeout)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_Generate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient("k", WithBaseURL(url)).Generate(context.Background(), "p", 10)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestTokenCounter_Count(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	n, err := tc.Count("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = tc.Count("")
	require.NoError(t, err)
	assert.Zero(t, n)
}
