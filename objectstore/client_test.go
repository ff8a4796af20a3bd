package objectstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

func testClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = serverURL
	cfg.RetryReads = false
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg, nil, nil)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_ValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	cfg := DefaultConfig()
	cfg.BaseURL = "not-a-url"
	_, err = NewClient(cfg, nil, nil)
	require.Error(t, err)
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/edu/participations/P1", r.URL.Path)
		writeJSON(w, http.StatusOK, PropertyBag{"id": "P1", "status": "REFERRED"})
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	bag, err := client.Get(context.Background(), NewRef("edu", "participations", "P1"))
	require.NoError(t, err)

	id, _ := bag.ID()
	assert.Equal(t, "P1", id)
}

func TestClient_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := testClient(t, server.URL, nil)

	_, err := client.Get(context.Background(), NewRef("edu", "participations", "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.False(t, errors.IsTransport(err))
}

func TestClient_Get_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	_, err := client.Get(context.Background(), NewRef("edu", "participations", "P1"))
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.True(t, errors.IsTransient(err))
}

func TestClient_Get_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, PropertyBag{"id": "P1"})
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.RetryReads = true })

	bag, err := client.Get(context.Background(), NewRef("edu", "participations", "P1"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())

	id, _ := bag.ID()
	assert.Equal(t, "P1", id)
}

func TestClient_Get_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.RetryReads = true })

	_, err := client.Get(context.Background(), NewRef("edu", "participations", "gone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Exists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/edu/participations/P1" {
			writeJSON(w, http.StatusOK, PropertyBag{"id": "P1"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	exists, err := client.Exists(context.Background(), NewRef("edu", "participations", "P1"))
	require.NoError(t, err)
	assert.True(t, exists)

	// NotFound never surfaces as an error from Exists
	exists, err = client.Exists(context.Background(), NewRef("edu", "participations", "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_Exists_TransportErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	_, err := client.Exists(context.Background(), NewRef("edu", "participations", "P1"))
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestClient_Create(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/edu/participations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body PropertyBag
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body[FieldID] = "P-NEW"
		body[FieldSelf] = "/eav/participations/8f3a"
		writeJSON(w, http.StatusCreated, body)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	bag, err := client.Create(context.Background(), "edu", "participations", PropertyBag{"status": "REFERRED"})
	require.NoError(t, err)

	id, _ := bag.ID()
	assert.Equal(t, "P-NEW", id)
	self, _ := bag.SelfURL()
	assert.Equal(t, "/eav/participations/8f3a", self)
}

func TestClient_Update(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/edu/participations/P1", r.URL.Path)

		var body PropertyBag
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, body)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	bag, err := client.Update(context.Background(), NewRef("edu", "participations", "P1"),
		PropertyBag{"id": "P1", "mentor": "/employees/E1"})
	require.NoError(t, err)

	mentor, _ := bag.GetString("mentor")
	assert.Equal(t, "/employees/E1", mentor)
}

func TestClient_Update_OptimisticLocking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Match") != "7" {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		var body PropertyBag
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, body)
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.OptimisticLocking = true })
	ref := NewRef("edu", "participations", "P1")

	// Stale version is rejected as a conflict
	_, err := client.Update(context.Background(), ref, PropertyBag{"id": "P1", FieldVersion: "6"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.True(t, errors.IsTransient(err))

	// Current version goes through
	_, err = client.Update(context.Background(), ref, PropertyBag{"id": "P1", FieldVersion: "7"})
	require.NoError(t, err)
}

func TestClient_Delete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/edu/participations/P1" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	require.NoError(t, client.Delete(context.Background(), NewRef("edu", "participations", "P1")))

	err := client.Delete(context.Background(), NewRef("edu", "participations", "gone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/edu/participations", r.URL.Path)
		assert.Equal(t, "/learning_needs/LN1", r.URL.Query().Get("learningNeed"))
		writeJSON(w, http.StatusOK, queryEnvelope{Results: []PropertyBag{
			{"id": "P1"},
			{"id": "P2"},
		}})
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	results, err := client.Query(context.Background(), "edu", "participations",
		map[string]string{"learningNeed": "/learning_needs/LN1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestClient_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, PropertyBag{"id": "P1"})
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, NewRef("edu", "participations", "P1"))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestClient_ReadCache(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		writeJSON(w, http.StatusOK, PropertyBag{"id": "P1", "status": "REFERRED"})
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) {
		cfg.Cache.Enabled = true
		cfg.Cache.TTL = time.Minute
	})
	ref := NewRef("edu", "participations", "P1")
	ctx := context.Background()

	_, err := client.Get(ctx, ref)
	require.NoError(t, err)
	_, err = client.Get(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gets.Load(), "second get should be served from cache")

	// Exists is answered by the cache too
	exists, err := client.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 1, gets.Load())

	// A write invalidates the cached entry
	_, err = client.Update(ctx, ref, PropertyBag{"id": "P1", "status": "ACTIVE"})
	require.NoError(t, err)
	_, err = client.Get(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 2, gets.Load())
}

func TestClient_CacheReturnsCopies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, PropertyBag{"id": "P1", "learningNeeds": []string{"/learning_needs/LN1"}})
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) {
		cfg.Cache.Enabled = true
		cfg.Cache.TTL = time.Minute
	})
	ref := NewRef("edu", "participants", "P1")
	ctx := context.Background()

	first, err := client.Get(ctx, ref)
	require.NoError(t, err)
	first["id"] = "mutated"

	second, err := client.Get(ctx, ref)
	require.NoError(t, err)
	id, _ := second.ID()
	assert.Equal(t, "P1", id, "cached bag must not observe caller mutations")
}

func TestClient_Metrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/edu/participations/P1" {
			writeJSON(w, http.StatusOK, PropertyBag{"id": "P1"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.RetryReads = false
	cfg.RateLimit = 0

	client, err := NewClient(cfg, nil, reg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Get(ctx, NewRef("edu", "participations", "P1"))
	require.NoError(t, err)
	_, err = client.Get(ctx, NewRef("edu", "participations", "missing"))
	require.Error(t, err)

	ok := testutil.ToFloat64(client.metrics.requests.WithLabelValues("get", "ok"))
	notFound := testutil.ToFloat64(client.metrics.requests.WithLabelValues("get", "not_found"))
	assert.Equal(t, 1.0, ok)
	assert.Equal(t, 1.0, notFound)
}

func TestClient_Ping(t *testing.T) {
	t.Run("reachable store", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := testClient(t, server.URL, nil)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unreachable store", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		client := testClient(t, server.URL, nil)
		err := client.Ping(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsTransient(err))
	})
}
