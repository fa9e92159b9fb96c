package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLokiCountRange(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/loki/api/v1/query", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, `{
			"status": "success",
			"data": {
				"resultType": "vector",
				"result": [
					{"metric": {}, "value": [1717243200, "17"]},
					{"metric": {}, "value": [1717243200, "5"]}
				]
			}
		}`)
	}))
	defer srv.Close()

	loki := NewLoki(srv.URL, http.DefaultTransport)
	to := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	count, err := loki.CountRange(context.Background(), `{job="portal"}`, to.Add(-time.Minute), to)
	require.NoError(t, err)
	assert.EqualValues(t, 22, count)
	assert.Equal(t, `sum(count_over_time({job="portal"}[60s]))`, gotQuery)
}

func TestLokiCountRangeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "success", "data": {"resultType": "vector", "result": []}}`)
	}))
	defer srv.Close()

	loki := NewLoki(srv.URL, http.DefaultTransport)
	count, err := loki.CountRange(context.Background(), `{job="idle"}`, time.Now().Add(-time.Minute), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestLokiCountRangeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			"non-success status",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status": "error", "data": {}}`)
			},
		},
		{
			"malformed sample value",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"status": "success", "data": {"resultType": "vector", "result": [{"metric": {}, "value": [0, "not-a-number"]}]}}`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			loki := NewLoki(srv.URL, http.DefaultTransport)
			_, err := loki.CountRange(context.Background(), `{job="x"}`, time.Now().Add(-time.Minute), time.Now())
			require.Error(t, err)
			assert.Equal(t, errs.CodeBackendUnavailable, errs.CodeOf(err))
		})
	}
}

func TestLokiCountRangeHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	loki := NewLoki(srv.URL, http.DefaultTransport)
	_, err := loki.CountRange(ctx, `{job="slow"}`, time.Now().Add(-time.Minute), time.Now())
	require.Error(t, err)
	assert.Equal(t, errs.CodeBackendUnavailable, errs.CodeOf(err))
}
