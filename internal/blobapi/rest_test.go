package blobapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

func TestPutBlockWire(t *testing.T) {
	payload := []byte("chunk payload")
	td := digest.Canonical.FromBytes(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/test-container/data.bin", r.URL.Path)
		assert.Equal(t, "block", r.URL.Query().Get("comp"))
		assert.Equal(t, "block-000003", r.URL.Query().Get("blockid"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, td.String(), r.Header.Get("Content-Digest"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, body)

		w.Header().Set("ETag", `"block-etag"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL, Token: "secret-token"})
	res, err := c.PutBlock(context.Background(), "test-container", "data.bin", "block-000003", payload, td)
	require.NoError(t, err)
	assert.Equal(t, `"block-etag"`, res.ETag)
}

func TestPutBlockListWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "blocklist", r.URL.Query().Get("comp"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "text/plain", r.Header.Get("X-Blob-Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Blob-Content-Digest"))
		assert.Equal(t, "production", r.Header.Get("X-Blob-Meta-Env"))

		var body struct {
			Blocks []string `json:"blocks"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"b-000000", "b-000001"}, body.Blocks)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.PutBlockList(context.Background(), "c", "k", []string{"b-000000", "b-000001"}, Properties{
		ContentType:   "text/plain",
		ContentDigest: digest.Canonical.FromString("content"),
		Metadata:      map[string]string{"Env": "production"},
	})
	require.NoError(t, err)
}

func TestCreatePageBlobWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, string(BlobTypePage), r.Header.Get("X-Blob-Type"))
		assert.Equal(t, "1048576", r.Header.Get("X-Blob-Content-Length"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.CreatePageBlob(context.Background(), "c", "disk.img", 1024*1024, Properties{})
	require.NoError(t, err)
}

func TestPutPagesWire(t *testing.T) {
	payload := make([]byte, 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page", r.URL.Query().Get("comp"))
		assert.Equal(t, "update", r.Header.Get("X-Page-Write"))
		assert.Equal(t, "bytes=1024-1535", r.Header.Get("Range"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.PutPages(context.Background(), "c", "disk.img", 1024, payload, "")
	require.NoError(t, err)
}

func TestClearPagesWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page", r.URL.Query().Get("comp"))
		assert.Equal(t, "clear", r.Header.Get("X-Page-Write"))
		assert.Equal(t, "bytes=512-1535", r.Header.Get("Range"))
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.ClearPages(context.Background(), "c", "disk.img", 512, 1024)
	require.NoError(t, err)
}

func TestGetPropertiesWire(t *testing.T) {
	stored := digest.Canonical.FromString("the content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("X-Blob-Type", string(BlobTypePage))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "2048")
		w.Header().Set("X-Blob-Content-Digest", stored.String())
		w.Header().Set("ETag", `"props-etag"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("X-Blob-Meta-Owner", "backup-service")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	info, err := c.GetProperties(context.Background(), retry.LocationPrimary, "c", "disk.img")
	require.NoError(t, err)

	assert.Equal(t, BlobTypePage, info.Type)
	assert.Equal(t, int64(2048), info.ContentLength)
	assert.Equal(t, "application/octet-stream", info.ContentType)
	assert.Equal(t, stored, info.ContentDigest)
	assert.Equal(t, `"props-etag"`, info.ETag)
	assert.False(t, info.LastModified.IsZero())
	assert.Equal(t, "backup-service", info.Metadata["Owner"])
}

func TestGetPropertiesDefaultsToBlockType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	info, err := c.GetProperties(context.Background(), retry.LocationPrimary, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, BlobTypeBlock, info.Type)
}

func TestGetRangeWire(t *testing.T) {
	content := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=4-11", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(content[4:12])
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	buf := make([]byte, 8)
	res, err := c.GetRange(context.Background(), retry.LocationPrimary, "c", "k", 4, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Bytes)
	assert.Equal(t, content[4:12], buf)
}

func TestGetRangeShortBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.GetRange(context.Background(), retry.LocationPrimary, "c", "k", 0, make([]byte, 8))
	require.Error(t, err)
}

func TestGetRangeUsesSecondaryEndpoint(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent to primary instead of secondary")
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 4))
	}))
	defer secondary.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: primary.URL, SecondaryEndpoint: secondary.URL})
	_, err := c.GetRange(context.Background(), retry.LocationSecondary, "c", "k", 0, make([]byte, 4))
	require.NoError(t, err)
}

func TestSecondaryLocationWithoutEndpoint(t *testing.T) {
	c := NewRESTClient(Config{PrimaryEndpoint: "http://primary.example"})
	_, err := c.GetProperties(context.Background(), retry.LocationSecondary, "c", "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, bloberrors.ErrInvalidInput)
}

func TestErrorEnvelopeParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"BlobNotFound","message":"no blob at this key"}`))
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.GetProperties(context.Background(), retry.LocationPrimary, "c", "missing")
	require.Error(t, err)

	var reqErr *bloberrors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Equal(t, bloberrors.CodeBlobNotFound, reqErr.Code)
	assert.ErrorIs(t, err, bloberrors.ErrBlobNotFound)
}

func TestRetryableStatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"ServerBusy","message":"slow down"}`))
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.PutBlock(context.Background(), "c", "k", "b-000000", []byte("x"), "")
	require.Error(t, err)

	var reqErr *bloberrors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.Temporary())
}

func TestDeleteWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	require.NoError(t, c.Delete(context.Background(), "c", "k"))
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL, RequestTimeout: 30 * time.Millisecond})
	_, err := c.GetProperties(context.Background(), retry.LocationPrimary, "c", "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, bloberrors.ErrConnection)
}

func TestContentLengthSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(5), r.ContentLength)
		n, _ := strconv.Atoi(r.Header.Get("Content-Length"))
		assert.Equal(t, 5, n)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewRESTClient(Config{PrimaryEndpoint: srv.URL})
	_, err := c.PutBlock(context.Background(), "c", "k", "b-000000", []byte("hello"), "")
	require.NoError(t, err)
}
