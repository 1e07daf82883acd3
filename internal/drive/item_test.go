package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/graphdrive-go/internal/api"
)

// tokenFunc adapts a func to api.TokenSource for tests.
type tokenFunc func() (string, error)

func (f tokenFunc) Token() (string, error) {
	return f()
}

func staticToken() api.TokenSource {
	return tokenFunc(func() (string, error) { return "test-token", nil })
}

// newTestDrive spins up an httptest server with the given handler and
// returns a drive client pointed at it. No session store is attached; tests
// that need persistence build their own.
func newTestDrive(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiClient := api.NewClient(server.URL, http.DefaultClient, staticToken(), slog.Default())

	return NewClient(apiClient, "d1", nil, slog.Default())
}

// testFolder builds a folder handle without a network round trip.
func testFolder(c *Client, id string) *Folder {
	return &Folder{Item: Item{ID: id, Name: id, Kind: KindFolder, c: c}}
}

// countingTransport fails every request and counts attempts. Used to prove
// an operation never reaches the network.
type countingTransport struct {
	calls atomic.Int32
}

func (ct *countingTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	ct.calls.Add(1)

	return nil, errors.New("unexpected network call")
}

// newOfflineDrive returns a drive client whose transport rejects all
// requests, plus the call counter.
func newOfflineDrive(t *testing.T) (*Client, *countingTransport) {
	t.Helper()

	ct := &countingTransport{}
	apiClient := api.NewClient("http://unused", &http.Client{Transport: ct}, staticToken(), slog.Default())

	return NewClient(apiClient, "d1", nil, slog.Default()), ct
}

func TestWrap_Classification(t *testing.T) {
	c, _ := newOfflineDrive(t)

	pkgFacet := json.RawMessage(`{"type":"oneNote"}`)

	tests := []struct {
		name string
		raw  api.Item
		want Kind
	}{
		{"folder facet", api.Item{ID: "1", Name: "docs", Folder: &api.FolderFacet{ChildCount: 2}}, KindFolder},
		{"file facet", api.Item{ID: "2", Name: "a.txt", File: &api.FileFacet{MimeType: "text/plain"}}, KindFile},
		{
			"special folder without folder facet",
			api.Item{ID: "3", Name: "Photos", SpecialFolder: &api.SpecialFolder{Name: "photos"}},
			KindFolder,
		},
		{"package record", api.Item{ID: "4", Name: "notebook", Package: &pkgFacet}, KindOther},
		{"bare record", api.Item{ID: "5", Name: "mystery"}, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := c.wrap(&tt.raw)
			assert.Equal(t, tt.want, item.Kind)
		})
	}
}

func TestWrap_Fields(t *testing.T) {
	c, _ := newOfflineDrive(t)

	raw := &api.Item{
		ID:                   "i1",
		Name:                 "report.txt",
		Size:                 1234,
		ETag:                 "etag-1",
		File:                 &api.FileFacet{MimeType: "text/plain"},
		ParentReference:      &api.ParentRef{ID: "parent-1", DriveID: "d1"},
		CreatedDateTime:      "2026-01-02T03:04:05Z",
		LastModifiedDateTime: "2026-06-07T08:09:10Z",
	}

	item := c.wrap(raw)

	assert.Equal(t, "i1", item.ID)
	assert.Equal(t, int64(1234), item.Size)
	assert.Equal(t, "etag-1", item.ETag)
	assert.Equal(t, "text/plain", item.MimeType)
	assert.Equal(t, "parent-1", item.ParentID)
	assert.Equal(t, ChildCountUnknown, item.ChildCount, "files have no child count")
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), item.Created)
	assert.Equal(t, time.Date(2026, 6, 7, 8, 9, 10, 0, time.UTC), item.Modified)
}

func TestWrap_NormalizesNameToNFC(t *testing.T) {
	c, _ := newOfflineDrive(t)

	// "é" in decomposed form (e + combining acute accent).
	raw := &api.Item{ID: "i1", Name: "café.txt"}

	item := c.wrap(raw)
	assert.Equal(t, "café.txt", item.Name)
}

func TestWrap_MalformedTimestamp(t *testing.T) {
	c, _ := newOfflineDrive(t)

	raw := &api.Item{ID: "i1", Name: "x", CreatedDateTime: "yesterday-ish"}

	item := c.wrap(raw)
	assert.True(t, item.Created.IsZero())
}

func TestAsFolder_RejectsFile(t *testing.T) {
	c, _ := newOfflineDrive(t)

	item := c.wrap(&api.Item{ID: "i1", Name: "a.txt", File: &api.FileFacet{}})

	_, err := item.AsFolder()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFolder)
}

func TestRoot(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/d1/items/root", r.URL.Path)
		fmt.Fprint(w, `{"id":"root-id","name":"root","folder":{"childCount":5}}`)
	}))

	root, err := c.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root-id", root.ID)
	assert.Equal(t, KindFolder, root.Kind)
	assert.Equal(t, 5, root.ChildCount)
}

func TestItemByPath_Found(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/d1/root:/docs/report.txt:", r.URL.Path)
		fmt.Fprint(w, `{"id":"i1","name":"report.txt","file":{}}`)
	}))

	item, err := c.ItemByPath(context.Background(), "docs/report.txt")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, KindFile, item.Kind)
}

func TestItemByPath_AbsentIsNilNil(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	item, err := c.ItemByPath(context.Background(), "no/such/path")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestItemByPath_ServerErrorIsError(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.ItemByPath(context.Background(), "docs")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteRequest)
	assert.ErrorIs(t, err, api.ErrForbidden)
}

func TestFolderByPath_AbsentIsError(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.FolderByPath(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFolder)
}

func TestItemDelete(t *testing.T) {
	var deleted atomic.Bool

	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/drives/d1/items/i1", r.URL.Path)
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))

	item := c.wrap(&api.Item{ID: "i1", Name: "a.txt", File: &api.FileFacet{}})

	require.NoError(t, item.Delete(context.Background()))
	assert.True(t, deleted.Load())
}
