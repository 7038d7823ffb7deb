package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_SendsRequestAndParsesChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))

		var body chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "llama-3.1-8b-instant", body.Model)
		assert.Equal(t, 2000, body.MaxTokens)
		if assert.NotNil(t, body.Temperature) {
			assert.InDelta(t, 0.3, *body.Temperature, 1e-9)
		}
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "user", body.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama-3.1-8b-instant","choices":[{"message":{"role":"assistant","content":"{\"score\":80}"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	c := New("gsk_test", "llama-3.1-8b-instant", srv.URL+"/", time.Second)
	resp, err := c.Complete(context.Background(), Request{
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "code"}},
		Temperature: ptr(0.3),
		MaxTokens:   2000,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":80}`, resp.Content)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "llama-3.1-8b-instant", resp.Model)
}

func TestComplete_StatusErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer srv.Close()

	c := New("k", "m", srv.URL, time.Second)
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "Rate limit reached", se.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New("k", "m", srv.URL, time.Second).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_MissingKey(t *testing.T) {
	_, err := New("", "m", "", 0).Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestErrorText_FallsBackToBody(t *testing.T) {
	assert.Equal(t, "upstream down", errorText([]byte(" upstream down ")))
}

func TestNew_Defaults(t *testing.T) {
	c := New("k", "m", "", 0)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 120*time.Second, c.http.Timeout)
	assert.Equal(t, "m", c.Model())
}

func ptr(f float64) *float64 { return &f }

func TestComplete_ZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := New("k", "m", srv.URL, time.Second)
	_, err := c.Complete(context.Background(), Request{Temperature: ptr(0)})
	require.NoError(t, err)
	v, ok := raw["temperature"]
	require.True(t, ok, "temperature 0 must not be omitted")
	assert.Equal(t, 0.0, v)

	_, err = c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	_, ok = raw["temperature"]
	assert.False(t, ok, "unset temperature is omitted")
}
