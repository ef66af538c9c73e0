package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCall_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-test", req.Model)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: `{"answer": ["a"]}`}}},
		})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "gpt-test"})
	reply, status, err := c.Call(context.Background(), "sys", "usr")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, `{"answer": ["a"]}`, reply)
}

func TestCall_Refusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "I'm sorry, I cannot help with that."}}},
		})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "gpt-test"})
	_, status, err := c.Call(context.Background(), "sys", "usr")
	require.NoError(t, err)
	require.Equal(t, StatusRefused, status)
}

func TestCall_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "gpt-test"})
	_, status, err := c.Call(context.Background(), "sys", "usr")
	require.Error(t, err)
	require.Equal(t, StatusError, status)
}

func TestCall_TimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "gpt-test", PerCallTimeout: 5 * time.Millisecond})
	_, status, err := c.Call(context.Background(), "sys", "usr")
	require.Error(t, err)
	require.Equal(t, StatusTimeout, status)
}

func TestIsRefusal(t *testing.T) {
	require.True(t, isRefusal("", DefaultRefusalPrefixes))
	require.True(t, isRefusal("I cannot do that", DefaultRefusalPrefixes))
	require.False(t, isRefusal(`{"answer": ["a"]}`, DefaultRefusalPrefixes))
}
