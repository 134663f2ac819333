package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels_FollowsPagination(t *testing.T) {
	var tokens []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		switch token {
		case "":
			fmt.Fprint(w, `{"models":[{"name":"models/a","displayName":"A","supportedGenerationMethods":["generateContent"]}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"models":[{"name":"models/b","displayName":"B","supportedGenerationMethods":["bidiGenerateContent"]}]}`)
		default:
			t.Errorf("unexpected page token %q", token)
		}
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"", "p2"}, tokens)
	require.Len(t, models, 2)
	assert.Equal(t, "models/a", models[0].Name)
	assert.Equal(t, "B", models[1].DisplayName)
}

func TestListGenerativeModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[
			{"name":"models/tts","supportedGenerationMethods":["countTokens","generateContent"]},
			{"name":"models/live","supportedGenerationMethods":["bidiGenerateContent"]},
			{"name":"models/embed"}
		]}`)
	})

	models, err := client.ListGenerativeModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "models/tts", models[0].Name)
}

func TestListModels_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"bad key"}`)
	})

	_, err := client.ListModels(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, `{"models":[]}`)
	})

	healthy, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)
}
