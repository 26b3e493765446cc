package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

func TestParseTime(t *testing.T) {
	got, err := ParseTime(float64(100))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(100, 0).UTC(), got)

	got, err = ParseTime("2024-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2024-03-01 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("100")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(100, 0).UTC(), got)

	_, err = ParseTime("not a date")
	assert.Error(t, err)
	_, err = ParseTime(nil)
	assert.Error(t, err)
}

func TestClient_Changes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/UPDATED", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		assert.Equal(t, "secret", r.URL.Query().Get("password"))
		assert.Equal(t, "100", r.URL.Query().Get("timestamp"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "a", "last_update": 150},
			{"id": "b", "last_update": "2024-03-01T10:00:00Z"},
		})
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	creds := Credentials{Username: "alice", Password: "secret"}
	changed, err := c.Changes(context.Background(), srv.URL, creds, time.Unix(100, 0))
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, "a", changed[0].ID)
	assert.Equal(t, time.Unix(150, 0).UTC(), changed[0].LastUpdate)
	assert.Equal(t, "b", changed[1].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), changed[1].LastUpdate)
}

func TestClient_Changes_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	_, err := c.Changes(context.Background(), srv.URL, Credentials{}, time.Time{})
	assert.ErrorIs(t, err, model.ErrBackendUnavailable)
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FETCH", r.URL.Path)
		assert.Equal(t, "a,b", r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "a", "title": "first"},
			{"id": "b", "title": "second"},
		})
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	docs, err := c.Fetch(context.Background(), srv.URL, Credentials{}, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0]["title"])

	// empty id list never hits the backend
	docs, err = c.Fetch(context.Background(), "http://localhost:1", Credentials{}, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClient_Save_ResponseShapes(t *testing.T) {
	var reply string
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch SaveBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	batch := SaveBatch{Create: []model.Document{{"id": "a"}}}

	status, reply = http.StatusOK, `false`
	_, err := c.Save(context.Background(), srv.URL, Credentials{}, batch)
	assert.ErrorIs(t, err, model.ErrBackendWriteFailed)

	status, reply = http.StatusOK, `[true, false]`
	res, err := c.Save(context.Background(), srv.URL, Credentials{}, batch)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, res.PerDoc)

	status, reply = http.StatusOK, `true`
	res, err = c.Save(context.Background(), srv.URL, Credentials{}, batch)
	require.NoError(t, err)
	assert.Nil(t, res.PerDoc)

	status, reply = http.StatusOK, ``
	res, err = c.Save(context.Background(), srv.URL, Credentials{}, batch)
	require.NoError(t, err)
	assert.Nil(t, res.PerDoc)

	status, reply = http.StatusInternalServerError, ``
	_, err = c.Save(context.Background(), srv.URL, Credentials{}, batch)
	assert.ErrorIs(t, err, model.ErrBackendWriteFailed)
}

func TestClient_UserAllowed(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/USER_ALLOWED", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(time.Second)

	status = http.StatusOK
	ok, err := c.UserAllowed(context.Background(), srv.URL, Credentials{Username: "alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	status = http.StatusForbidden
	ok, err = c.UserAllowed(context.Background(), srv.URL, Credentials{Username: "mallory"})
	require.NoError(t, err)
	assert.False(t, ok)
}
