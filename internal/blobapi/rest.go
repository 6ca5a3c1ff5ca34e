package blobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opencontainers/go-digest"

	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// Wire headers understood by the service.
const (
	headerBlobType          = "X-Blob-Type"
	headerBlobContentLength = "X-Blob-Content-Length"
	headerContentDigest     = "Content-Digest"
	headerBlobDigest        = "X-Blob-Content-Digest"
	headerBlobContentType   = "X-Blob-Content-Type"
	headerPageWrite         = "X-Page-Write"
	headerMetadataPrefix    = "X-Blob-Meta-"
)

// Config configures the REST client.
type Config struct {
	// PrimaryEndpoint is the base URL of the primary location
	PrimaryEndpoint string

	// SecondaryEndpoint is the base URL of the secondary location;
	// empty when the account has no secondary
	SecondaryEndpoint string

	// Token is the opaque capability token sent as a bearer credential
	Token string

	// RequestTimeout bounds each individual request
	RequestTimeout time.Duration

	// HTTPClient overrides the default transport
	HTTPClient *http.Client
}

// RESTClient implements Service over plain HTTP.
type RESTClient struct {
	primary   string
	secondary string
	token     string
	timeout   time.Duration
	client    *http.Client
}

// NewRESTClient creates a Service implementation talking to the configured
// endpoints. Redirects are not followed: chunk bodies must only ever be sent
// to the endpoint they were addressed to.
func NewRESTClient(cfg Config) *RESTClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     30 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &RESTClient{
		primary:   cfg.PrimaryEndpoint,
		secondary: cfg.SecondaryEndpoint,
		token:     cfg.Token,
		timeout:   cfg.RequestTimeout,
		client:    client,
	}
}

// blockListBody is the JSON commit body for PutBlockList.
type blockListBody struct {
	Blocks []string `json:"blocks"`
}

// errorBody is the JSON error envelope returned by the service.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PutBlock implements Service.
func (c *RESTClient) PutBlock(
	ctx context.Context,
	container, key, blockID string,
	body []byte,
	transactionalDigest digest.Digest,
) (*PutResult, error) {
	q := url.Values{"comp": {"block"}, "blockid": {blockID}}
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, q, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(body))
	if transactionalDigest != "" {
		req.Header.Set(headerContentDigest, transactionalDigest.String())
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// PutBlockList implements Service.
func (c *RESTClient) PutBlockList(
	ctx context.Context,
	container, key string,
	blockIDs []string,
	props Properties,
) (*PutResult, error) {
	payload, err := json.Marshal(blockListBody{Blocks: blockIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding block list: %w", err)
	}

	q := url.Values{"comp": {"blocklist"}}
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, q, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", "application/json")
	setPropertyHeaders(req, props)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// CreatePageBlob implements Service.
func (c *RESTClient) CreatePageBlob(
	ctx context.Context,
	container, key string,
	length int64,
	props Properties,
) (*PutResult, error) {
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerBlobType, string(BlobTypePage))
	req.Header.Set(headerBlobContentLength, strconv.FormatInt(length, 10))
	setPropertyHeaders(req, props)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// PutPages implements Service.
func (c *RESTClient) PutPages(
	ctx context.Context,
	container, key string,
	offset int64,
	body []byte,
	transactionalDigest digest.Digest,
) (*PutResult, error) {
	q := url.Values{"comp": {"page"}}
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, q, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set(headerPageWrite, "update")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(body))-1))
	if transactionalDigest != "" {
		req.Header.Set(headerContentDigest, transactionalDigest.String())
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// ClearPages implements Service.
func (c *RESTClient) ClearPages(
	ctx context.Context,
	container, key string,
	offset, length int64,
) (*PutResult, error) {
	q := url.Values{"comp": {"page"}}
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, q, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerPageWrite, "clear")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// SetProperties implements Service.
func (c *RESTClient) SetProperties(
	ctx context.Context,
	container, key string,
	props Properties,
) (*PutResult, error) {
	q := url.Values{"comp": {"properties"}}
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodPut, container, key, q, nil)
	if err != nil {
		return nil, err
	}
	setPropertyHeaders(req, props)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &PutResult{ETag: resp.Header.Get("ETag")}, nil
}

// GetProperties implements Service.
func (c *RESTClient) GetProperties(
	ctx context.Context,
	loc retry.Location,
	container, key string,
) (*BlobInfo, error) {
	req, err := c.newRequest(ctx, loc, http.MethodHead, container, key, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	info := &BlobInfo{
		Type:        BlobType(resp.Header.Get(headerBlobType)),
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}
	if info.Type == "" {
		info.Type = BlobTypeBlock
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		info.ContentLength, _ = strconv.ParseInt(cl, 10, 64)
	}
	if d := resp.Header.Get(headerBlobDigest); d != "" {
		if parsed, err := digest.Parse(d); err == nil {
			info.ContentDigest = parsed
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			info.LastModified = ts
		}
	}
	info.Metadata = parseMetadataHeaders(resp.Header)

	return info, nil
}

// GetRange implements Service. The full requested range is read into buf;
// a short read is a transport failure.
func (c *RESTClient) GetRange(
	ctx context.Context,
	loc retry.Location,
	container, key string,
	offset int64,
	buf []byte,
) (*RangeResult, error) {
	req, err := c.newRequest(ctx, loc, http.MethodGet, container, key, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(buf))-1))

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp, http.StatusPartialContent, http.StatusOK); err != nil {
		return nil, err
	}

	n, err := io.ReadFull(resp.Body, buf)
	if err != nil {
		return nil, fmt.Errorf("reading range body: %w", err)
	}

	return &RangeResult{Bytes: n, ETag: resp.Header.Get("ETag")}, nil
}

// Delete implements Service.
func (c *RESTClient) Delete(ctx context.Context, container, key string) error {
	req, err := c.newRequest(ctx, retry.LocationPrimary, http.MethodDelete, container, key, nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	return checkStatus(resp, http.StatusAccepted, http.StatusOK, http.StatusNoContent)
}

// newRequest builds a request against the endpoint for loc.
func (c *RESTClient) newRequest(
	ctx context.Context,
	loc retry.Location,
	method, container, key string,
	query url.Values,
	body io.Reader,
) (*http.Request, error) {
	base := c.primary
	if loc == retry.LocationSecondary {
		if c.secondary == "" {
			return nil, bloberrors.NewError("request", bloberrors.ErrInvalidInput).
				WithMessage("no secondary endpoint configured")
		}
		base = c.secondary
	}

	u := fmt.Sprintf("%s/%s/%s", base, url.PathEscape(container), url.PathEscape(key))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes a request under the per-request timeout.
func (c *RESTClient) do(req *http.Request) (*http.Response, error) {
	if c.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
		req = req.WithContext(ctx)
		resp, err := c.client.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %w", bloberrors.ErrConnection, err)
		}
		// The body must outlive this call; tie the timeout to body closure.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bloberrors.ErrConnection, err)
	}
	return resp, nil
}

// cancelOnClose releases the request timeout when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// checkStatus converts a non-expected status into a typed RequestError,
// parsing the JSON error envelope when present.
func checkStatus(resp *http.Response, expected ...int) error {
	for _, want := range expected {
		if resp.StatusCode == want {
			return nil
		}
	}

	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	return bloberrors.NewRequestError(resp.StatusCode, body.Code, body.Message)
}

// setPropertyHeaders attaches blob properties to a write request.
func setPropertyHeaders(req *http.Request, props Properties) {
	if props.ContentType != "" {
		req.Header.Set(headerBlobContentType, props.ContentType)
	}
	if props.ContentDigest != "" {
		req.Header.Set(headerBlobDigest, props.ContentDigest.String())
	}
	for k, v := range props.Metadata {
		req.Header.Set(headerMetadataPrefix+k, v)
	}
}

// parseMetadataHeaders extracts user metadata from response headers.
func parseMetadataHeaders(h http.Header) map[string]string {
	var md map[string]string
	for k := range h {
		if len(k) > len(headerMetadataPrefix) && http.CanonicalHeaderKey(k[:len(headerMetadataPrefix)]) == headerMetadataPrefix {
			if md == nil {
				md = make(map[string]string)
			}
			md[k[len(headerMetadataPrefix):]] = h.Get(k)
		}
	}
	return md
}

// drain discards and closes the response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
