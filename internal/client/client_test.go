package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovendo/analytics-service/internal/models"
)

func TestTrack(t *testing.T) {
	var got TrackRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/track", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Track(&TrackRequest{Event: "purchase", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "purchase", got.Event)
	assert.Equal(t, "u1", got.UserID)
}

func TestQueryEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/query", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": []map[string]interface{}{
				{"id": "1", "name": "purchase", "user_id": "u1"},
			},
			"count": 1,
		})
	}))
	defer srv.Close()

	events, err := New(srv.URL).QueryEvents(&models.EventFilter{Names: []string{"purchase"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "purchase", events[0].Name)
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"event name is required"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Track(&TrackRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event name is required")
	assert.Contains(t, err.Error(), "400")
}

func TestGetVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/abtests/t1/variant", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		json.NewEncoder(w).Encode(models.Variant{ID: "control", Name: "Control", Weight: 0.5})
	}))
	defer srv.Close()

	v, err := New(srv.URL).GetVariant("t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "control", v.ID)
}
