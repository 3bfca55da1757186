package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collegebot/pkg/config"
	apperrors "collegebot/pkg/errors"
)

func testConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		ScheduleURL:  url,
		BellURL:      url,
		CanteenURL:   url,
		FetchTimeout: 5 * time.Second,
		UserAgent:    "test-agent",
	}
}

func TestTimetableFetchesAndParses(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.Write([]byte(`<html><body><table class="MsoNormalTable"><tr><td>x</td></tr></table></body></html>`))
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	doc, err := f.Timetable(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("table.MsoNormalTable").Length())
	require.Equal(t, "test-agent", gotAgent)
}

func TestCanteenMenuReturnsRawBytes(t *testing.T) {
	payload := []byte("%PDF-1.4 menu")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	data, err := f.CanteenMenu(context.Background())
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestFetchMissingURL(t *testing.T) {
	f := New(config.SourceConfig{FetchTimeout: time.Second}, nil)
	_, err := f.Bells(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrSourceUnavailable))
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(testConfig(srv.URL), nil)
	_, err := f.Timetable(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrSourceUnavailable))
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(testConfig("http://127.0.0.1:0"), nil)
	_, err := f.Timetable(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
