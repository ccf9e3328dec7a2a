package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/secret"
)

func TestUploadSucceedsOn200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := New(srv.URL, secret.New("tok"))
	err := u.Upload(context.Background(), Metadata{IntegrationID: "int1"}, domain.AnalysisArtifact{Raw: []byte(`{}`)})
	require.NoError(t, err)
}

func TestUploadRetriesOn5xxThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := New(srv.URL, secret.New("tok"))
	u.initialInterval = 1
	err := u.Upload(context.Background(), Metadata{IntegrationID: "int1"}, domain.AnalysisArtifact{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestUploadDoesNotRetryOn401(t *testing.T) {
	t.Parallel()

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	u := New(srv.URL, secret.New("tok"))
	u.initialInterval = 1
	err := u.Upload(context.Background(), Metadata{IntegrationID: "int1"}, domain.AnalysisArtifact{})
	require.Error(t, err)
	assert.True(t, brokererr.Is(err, brokererr.KindAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classifyStatus(200, nil))
	assert.True(t, brokererr.Is(classifyStatus(500, nil), brokererr.KindTransport))
	assert.True(t, brokererr.Is(classifyStatus(401, nil), brokererr.KindAuth))
	assert.True(t, brokererr.Is(classifyStatus(422, nil), brokererr.KindAuth))
	assert.True(t, brokererr.Is(classifyStatus(400, nil), brokererr.KindFatal))
	assert.True(t, brokererr.Is(classifyStatus(404, nil), brokererr.KindFatal))
}
