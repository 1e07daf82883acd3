package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/drives/d1/items/p1/children", r.URL.Path)

		var body map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Photos", body["name"])
		assert.Equal(t, "fail", body["@microsoft.graph.conflictBehavior"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"nf1","name":"Photos","folder":{"childCount":0}}`)
	}))

	parent := testFolder(c, "p1")

	created, err := parent.CreateFolder(context.Background(), "Photos", FailIfExists)
	require.NoError(t, err)
	assert.Equal(t, "nf1", created.ID)
	assert.Equal(t, KindFolder, created.Kind)
}

func TestCreateFolder_EmptyName(t *testing.T) {
	c, ct := newOfflineDrive(t)
	parent := testFolder(c, "p1")

	_, err := parent.CreateFolder(context.Background(), "", FailIfExists)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, ct.calls.Load())
}

func TestCreateFile(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/drives/d1/items/p1:/hello.txt:/content", r.URL.Path)
		assert.Equal(t, "replace", r.URL.Query().Get("@microsoft.graph.conflictBehavior"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"i1","name":"hello.txt","size":5,"file":{}}`)
	}))

	folder := testFolder(c, "p1")

	item, err := folder.CreateFile(context.Background(), "hello.txt", []byte("hello"), ReplaceExisting)
	require.NoError(t, err)
	assert.Equal(t, KindFile, item.Kind)
	assert.Equal(t, int64(5), item.Size)
}

func TestCreateFile_EmptyContentSendsPlaceholder(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, bytes.Equal([]byte{0}, body), "empty content must become one zero byte")

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"i1","name":"empty.txt","size":1,"file":{}}`)
	}))

	folder := testFolder(c, "p1")

	_, err := folder.CreateFile(context.Background(), "empty.txt", nil, FailIfExists)
	require.NoError(t, err)
}

func TestCreateFile_TooLarge(t *testing.T) {
	c, ct := newOfflineDrive(t)
	folder := testFolder(c, "p1")

	content := make([]byte, SimpleUploadMaxSize+1)

	_, err := folder.CreateFile(context.Background(), "big.bin", content, ReplaceExisting)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Zero(t, ct.calls.Load(), "the ceiling check must run before any network call")
}

func TestCreateFile_AtCeiling(t *testing.T) {
	c := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Len(t, body, SimpleUploadMaxSize)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"i1","name":"max.bin","size":%d,"file":{}}`, SimpleUploadMaxSize)
	}))

	folder := testFolder(c, "p1")

	_, err := folder.CreateFile(context.Background(), "max.bin", make([]byte, SimpleUploadMaxSize), ReplaceExisting)
	require.NoError(t, err)
}
