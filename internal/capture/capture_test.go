package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body><table class="uoa_gridborder_cal"></table></body></html>`

func TestFetcher_CachesAndRevalidates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "PS_TOKEN=abc", r.Header.Get("Cookie"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), "PS_TOKEN=abc")

	first, err := f.Fetch(context.Background(), srv.URL+"/timetable")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, page, string(first.Body))

	second, err := f.Fetch(context.Background(), srv.URL+"/timetable")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, page, string(second.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcher_FallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), "")
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, page, string(res.Body))
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewFetcher(t.TempDir(), "").Fetch(context.Background(), srv.URL)

	assert.ErrorContains(t, err, "403")
}

func TestSource_Load(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "timetable.html")
	require.NoError(t, os.WriteFile(file, []byte(page), 0o600))

	t.Run("file", func(t *testing.T) {
		body, err := Source{File: file, URL: "https://ignored.example"}.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, page, string(body))
	})

	t.Run("stdin", func(t *testing.T) {
		body, err := Source{File: "-", Stdin: strings.NewReader(page)}.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, page, string(body))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Source{File: filepath.Join(dir, "nope.html")}.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := Source{}.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("browser", func(t *testing.T) {
		var got RenderOptions
		src := Source{
			URL:    "https://portal.example/schedule",
			Render: RenderOptions{Headless: true},
			renderFn: func(_ context.Context, o RenderOptions) (string, error) {
				got = o
				return page, nil
			},
		}

		body, err := src.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, page, string(body))
		assert.Equal(t, "https://portal.example/schedule", got.URL)
		assert.True(t, got.Headless)
	})

	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		src := Source{URL: srv.URL, Mode: ModeHTTP, Fetcher: NewFetcher(t.TempDir(), "")}
		body, err := src.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, page, string(body))
	})
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://ssologin.auckland.ac.nz/...(redacted)",
		redactURL("https://ssologin.auckland.ac.nz/psc/ps/EMPLOYEE?token=abc"))
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}

func TestRenderedHTML_RequiresURL(t *testing.T) {
	_, err := RenderedHTML(context.Background(), RenderOptions{})
	assert.Error(t, err)
}
