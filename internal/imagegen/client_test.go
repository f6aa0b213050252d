package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("x-freepik-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/a.png"},{"url":"https://cdn.example.com/b.png"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", BaseURL: srv.URL})
	url, err := c.Generate(context.Background(), strings.Repeat("p", 200))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/a.png", url)
	assert.Equal(t, "High-quality LinkedIn post visual: "+strings.Repeat("p", 150), got.Prompt)
	assert.Equal(t, "digital_art", got.Styling)
	assert.Equal(t, "1024x1024", got.Size)
}

func TestGenerate_NoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL}).Generate(context.Background(), "post")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "bad", BaseURL: srv.URL}).Generate(context.Background(), "post")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Invalid API key")
}

func TestGenerate_NotConfigured(t *testing.T) {
	_, err := NewClient(Config{}).Generate(context.Background(), "post")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPrompt_CountsRunes(t *testing.T) {
	post := strings.Repeat("ü", 151)
	assert.Equal(t, "High-quality LinkedIn post visual: "+strings.Repeat("ü", 150), Prompt(post))
	assert.Equal(t, "High-quality LinkedIn post visual: short", Prompt("short"))
}
