package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/httputil"
	"github.com/pasturelabs/roundup/pkg/semver"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cache, err := httputil.NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &Client{
		Client:  httputil.NewClient(cache, nil),
		baseURL: server.URL,
	}
}

func p2Handler(t *testing.T, pkg string, versions ...string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p2/"+pkg+".json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		entries := make([]map[string]string, 0, len(versions))
		for _, v := range versions {
			entries = append(entries, map[string]string{"version": v})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"packages": map[string]any{pkg: entries},
		})
	})
}

func TestPublishedVersions(t *testing.T) {
	client := testClient(t, p2Handler(t, "acme/framework", "1.0.0", "1.1.0", "dev-main"))

	versions, err := client.PublishedVersions(context.Background(), "Acme/Framework ", false)
	if err != nil {
		t.Fatalf("PublishedVersions() error: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2 (dev branches skipped)", len(versions))
	}
}

func TestPublishedVersionsNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.PublishedVersions(context.Background(), "acme/ghost", false)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestWaitForVersionSucceedsOncePublished(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		versions := []map[string]string{{"version": "1.0.0"}}
		if calls.Add(1) >= 3 {
			versions = append(versions, map[string]string{"version": "1.1.0"})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"packages": map[string]any{"acme/framework": versions},
		})
	}))

	err := client.WaitForVersion(context.Background(), "acme/framework",
		semver.MustParse("1.1.0"), time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("WaitForVersion() error: %v", err)
	}
	if calls.Load() < 3 {
		t.Errorf("calls = %d, want at least 3", calls.Load())
	}
}

func TestWaitForVersionTimesOut(t *testing.T) {
	client := testClient(t, p2Handler(t, "acme/framework", "1.0.0"))

	err := client.WaitForVersion(context.Background(), "acme/framework",
		semver.MustParse("9.9.9"), time.Millisecond, 10*time.Millisecond)
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Fatalf("error = %v, want TIMEOUT", err)
	}
}

func TestWaitForVersionToleratesUnindexedPackage(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			http.NotFound(w, r)
			return
		}
		p2Handler(t, "acme/fresh", "1.0.0").ServeHTTP(w, r)
	}))

	err := client.WaitForVersion(context.Background(), "acme/fresh",
		semver.MustParse("1.0.0"), time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("WaitForVersion() error: %v", err)
	}
}
