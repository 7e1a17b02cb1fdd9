package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvedrelay/solvedrelay/internal/gfg"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
)

type stubFetcher struct {
	mu      sync.Mutex
	slugs   []string
	err     error
	queries []gfg.Query
}

func (f *stubFetcher) FetchSolved(ctx context.Context, q gfg.Query) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.slugs, f.err
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func postSolved(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/gfg/solved", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestSolvedHandlerSuccess(t *testing.T) {
	fetcher := &stubFetcher{slugs: []string{"lru-cache", "two-sum"}}
	rec, body := postSolved(t, NewSolvedHandler(fetcher), `{"handle":"alice","year":"2024","month":"3"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{
		"success": true,
		"slugs":   []any{"lru-cache", "two-sum"},
	}, body)
	require.Equal(t, []gfg.Query{{Handle: "alice", Year: "2024", Month: "3"}}, fetcher.queries)
}

func TestSolvedHandlerDefaultsYearAndMonth(t *testing.T) {
	fetcher := &stubFetcher{}
	rec, body := postSolved(t, NewSolvedHandler(fetcher), `{"handle":"bob"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["slugs"], "empty result must encode as [] not null")
	assert.Equal(t, true, body["success"])
	require.Equal(t, []gfg.Query{{Handle: "bob"}}, fetcher.queries)
}

func TestSolvedHandlerRequiresHandle(t *testing.T) {
	for _, payload := range []string{``, `{}`, `{"handle":""}`, `{"year":"2024"}`, `null`} {
		t.Run(fmt.Sprintf("body %q", payload), func(t *testing.T) {
			fetcher := &stubFetcher{}
			rec, body := postSolved(t, NewSolvedHandler(fetcher), payload)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": MsgUsernameRequired}, body)
			assert.Zero(t, fetcher.calls())
		})
	}
}

func TestSolvedHandlerRejectsMalformedBody(t *testing.T) {
	for _, payload := range []string{`{"handle":`, `{"handle":42}`, `[1,2]`, `{"handle":"a"} {"handle":"b"}`} {
		t.Run(payload, func(t *testing.T) {
			fetcher := &stubFetcher{}
			rec, body := postSolved(t, NewSolvedHandler(fetcher), payload)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"success": false, "error": MsgInvalidBody}, body)
			assert.Zero(t, fetcher.calls())
		})
	}
}

func TestSolvedHandlerUpstreamRateLimited(t *testing.T) {
	fetcher := &stubFetcher{err: &gfg.UpstreamError{StatusCode: http.StatusTooManyRequests, Err: gfg.ErrUpstreamRateLimited}}
	rec, body := postSolved(t, NewSolvedHandler(fetcher), `{"handle":"alice"}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": MsgUpstreamRateLimited}, body)
	assert.NotContains(t, body, "retryAfterMinutes")
}

func TestSolvedHandlerUpstreamFailureHidesDetail(t *testing.T) {
	fetcher := &stubFetcher{err: &gfg.UpstreamError{StatusCode: http.StatusBadGateway, Err: errors.New("secret upstream detail")}}
	rec, body := postSolved(t, NewSolvedHandler(fetcher), `{"handle":"alice"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": MsgUpstreamFailed}, body)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRateLimitExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimitExceeded(15)(rec, httptest.NewRequest(http.MethodPost, "/api/gfg/solved", nil), ratelimit.Decision{})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{
		"success":           false,
		"error":             MsgTooManyRequests,
		"retryAfterMinutes": float64(15),
	}, body)
}

func TestSolvedHandlerWithClientFlattensAndDeduplicates(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"easy":{"p1":{"slug":"Two-Sum"},"p2":{"slug":"two-sum"}}}}`))
	}))
	defer upstream.Close()

	client := &gfg.Client{URL: upstream.URL, HTTPClient: upstream.Client()}
	rec, body := postSolved(t, NewSolvedHandler(client), `{"handle":"alice"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"two-sum"}, body["slugs"])
}

func TestSolvedHandlerWithClientMalformedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer upstream.Close()

	client := &gfg.Client{URL: upstream.URL, HTTPClient: upstream.Client()}
	rec, body := postSolved(t, NewSolvedHandler(client), `{"handle":"alice"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgUpstreamFailed, body["error"])
}

func TestRootHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	RootHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RootMessage, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}
