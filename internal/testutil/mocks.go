// Package testutil provides shared test helpers: a function-field mock of
// the blob service, deterministic data generators, and a recording progress
// tracker.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// PutBlockCall records the arguments of one PutBlock invocation.
type PutBlockCall struct {
	Container string
	Key       string
	BlockID   string
	Body      []byte
	Digest    digest.Digest
	Location  retry.Location
}

// PutPagesCall records the arguments of one PutPages invocation.
type PutPagesCall struct {
	Container string
	Key       string
	Offset    int64
	Body      []byte
	Digest    digest.Digest
}

// GetRangeCall records the arguments of one GetRange invocation.
type GetRangeCall struct {
	Container string
	Key       string
	Offset    int64
	Length    int
	Location  retry.Location
}

// MockService is a configurable mock of blobapi.Service. Each method
// delegates to the corresponding function field when set and otherwise
// succeeds. All invocations are recorded in completion order and the
// recording is safe for concurrent use.
type MockService struct {
	mu sync.Mutex

	PutBlockFunc func(
		ctx context.Context, container, key, blockID string,
		body []byte, transactionalDigest digest.Digest,
	) (*blobapi.PutResult, error)
	PutBlockListFunc func(
		ctx context.Context, container, key string,
		blockIDs []string, props blobapi.Properties,
	) (*blobapi.PutResult, error)
	CreatePageBlobFunc func(
		ctx context.Context, container, key string,
		length int64, props blobapi.Properties,
	) (*blobapi.PutResult, error)
	PutPagesFunc func(
		ctx context.Context, container, key string,
		offset int64, body []byte, transactionalDigest digest.Digest,
	) (*blobapi.PutResult, error)
	ClearPagesFunc func(
		ctx context.Context, container, key string,
		offset, length int64,
	) (*blobapi.PutResult, error)
	SetPropertiesFunc func(
		ctx context.Context, container, key string,
		props blobapi.Properties,
	) (*blobapi.PutResult, error)
	GetPropertiesFunc func(
		ctx context.Context, loc retry.Location, container, key string,
	) (*blobapi.BlobInfo, error)
	GetRangeFunc func(
		ctx context.Context, loc retry.Location, container, key string,
		offset int64, buf []byte,
	) (*blobapi.RangeResult, error)
	DeleteFunc func(ctx context.Context, container, key string) error

	putBlocks     []PutBlockCall
	putPages      []PutPagesCall
	getRanges     []GetRangeCall
	blockList     []string
	blockListN    int
	createN       int
	createLength  int64
	clearN        int
	setPropsN     int
	setPropsLast  blobapi.Properties
	getPropsN     int
	deleteN       int
	finalProps    blobapi.Properties
	finalPropsSet bool
}

var _ blobapi.Service = (*MockService)(nil)

// PutBlock implements blobapi.Service.
func (m *MockService) PutBlock(
	ctx context.Context,
	container, key, blockID string,
	body []byte,
	transactionalDigest digest.Digest,
) (*blobapi.PutResult, error) {
	if m.PutBlockFunc != nil {
		res, err := m.PutBlockFunc(ctx, container, key, blockID, body, transactionalDigest)
		if err != nil {
			return res, err
		}
		m.recordPutBlock(container, key, blockID, body, transactionalDigest)
		return res, nil
	}
	m.recordPutBlock(container, key, blockID, body, transactionalDigest)
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

func (m *MockService) recordPutBlock(
	container, key, blockID string, body []byte, dgst digest.Digest,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	m.putBlocks = append(m.putBlocks, PutBlockCall{
		Container: container,
		Key:       key,
		BlockID:   blockID,
		Body:      cp,
		Digest:    dgst,
	})
}

// PutBlockList implements blobapi.Service.
func (m *MockService) PutBlockList(
	ctx context.Context,
	container, key string,
	blockIDs []string,
	props blobapi.Properties,
) (*blobapi.PutResult, error) {
	m.mu.Lock()
	m.blockListN++
	m.blockList = append([]string(nil), blockIDs...)
	m.finalProps = props
	m.finalPropsSet = true
	m.mu.Unlock()
	if m.PutBlockListFunc != nil {
		return m.PutBlockListFunc(ctx, container, key, blockIDs, props)
	}
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

// CreatePageBlob implements blobapi.Service.
func (m *MockService) CreatePageBlob(
	ctx context.Context,
	container, key string,
	length int64,
	props blobapi.Properties,
) (*blobapi.PutResult, error) {
	m.mu.Lock()
	m.createN++
	m.createLength = length
	m.mu.Unlock()
	if m.CreatePageBlobFunc != nil {
		return m.CreatePageBlobFunc(ctx, container, key, length, props)
	}
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

// PutPages implements blobapi.Service.
func (m *MockService) PutPages(
	ctx context.Context,
	container, key string,
	offset int64,
	body []byte,
	transactionalDigest digest.Digest,
) (*blobapi.PutResult, error) {
	if m.PutPagesFunc != nil {
		res, err := m.PutPagesFunc(ctx, container, key, offset, body, transactionalDigest)
		if err != nil {
			return res, err
		}
		m.recordPutPages(container, key, offset, body, transactionalDigest)
		return res, nil
	}
	m.recordPutPages(container, key, offset, body, transactionalDigest)
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

func (m *MockService) recordPutPages(
	container, key string, offset int64, body []byte, dgst digest.Digest,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	m.putPages = append(m.putPages, PutPagesCall{
		Container: container,
		Key:       key,
		Offset:    offset,
		Body:      cp,
		Digest:    dgst,
	})
}

// ClearPages implements blobapi.Service.
func (m *MockService) ClearPages(
	ctx context.Context,
	container, key string,
	offset, length int64,
) (*blobapi.PutResult, error) {
	m.mu.Lock()
	m.clearN++
	m.mu.Unlock()
	if m.ClearPagesFunc != nil {
		return m.ClearPagesFunc(ctx, container, key, offset, length)
	}
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

// SetProperties implements blobapi.Service.
func (m *MockService) SetProperties(
	ctx context.Context,
	container, key string,
	props blobapi.Properties,
) (*blobapi.PutResult, error) {
	m.mu.Lock()
	m.setPropsN++
	m.setPropsLast = props
	m.finalProps = props
	m.finalPropsSet = true
	m.mu.Unlock()
	if m.SetPropertiesFunc != nil {
		return m.SetPropertiesFunc(ctx, container, key, props)
	}
	return &blobapi.PutResult{ETag: `"mock-etag"`}, nil
}

// GetProperties implements blobapi.Service.
func (m *MockService) GetProperties(
	ctx context.Context,
	loc retry.Location,
	container, key string,
) (*blobapi.BlobInfo, error) {
	m.mu.Lock()
	m.getPropsN++
	m.mu.Unlock()
	if m.GetPropertiesFunc != nil {
		return m.GetPropertiesFunc(ctx, loc, container, key)
	}
	return &blobapi.BlobInfo{
		Type:          blobapi.BlobTypeBlock,
		ContentLength: 0,
		ContentType:   "application/octet-stream",
		ETag:          `"mock-etag"`,
		LastModified:  time.Now(),
	}, nil
}

// GetRange implements blobapi.Service.
func (m *MockService) GetRange(
	ctx context.Context,
	loc retry.Location,
	container, key string,
	offset int64,
	buf []byte,
) (*blobapi.RangeResult, error) {
	m.mu.Lock()
	m.getRanges = append(m.getRanges, GetRangeCall{
		Container: container,
		Key:       key,
		Offset:    offset,
		Length:    len(buf),
		Location:  loc,
	})
	m.mu.Unlock()
	if m.GetRangeFunc != nil {
		return m.GetRangeFunc(ctx, loc, container, key, offset, buf)
	}
	for i := range buf {
		buf[i] = 0
	}
	return &blobapi.RangeResult{Bytes: len(buf), ETag: `"mock-etag"`}, nil
}

// Delete implements blobapi.Service.
func (m *MockService) Delete(ctx context.Context, container, key string) error {
	m.mu.Lock()
	m.deleteN++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, container, key)
	}
	return nil
}

// PutBlockCalls returns the recorded successful PutBlock calls in completion
// order.
func (m *MockService) PutBlockCalls() []PutBlockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutBlockCall(nil), m.putBlocks...)
}

// PutPagesCalls returns the recorded successful PutPages calls in completion
// order.
func (m *MockService) PutPagesCalls() []PutPagesCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutPagesCall(nil), m.putPages...)
}

// GetRangeCalls returns the recorded GetRange calls in issue order.
func (m *MockService) GetRangeCalls() []GetRangeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GetRangeCall(nil), m.getRanges...)
}

// CommittedBlockList returns the block ID list from the last PutBlockList
// call.
func (m *MockService) CommittedBlockList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blockList...)
}

// PutBlockListCount returns the number of PutBlockList calls.
func (m *MockService) PutBlockListCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockListN
}

// CreateCount returns the number of CreatePageBlob calls.
func (m *MockService) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createN
}

// CreatedLength returns the length passed to the last CreatePageBlob call.
func (m *MockService) CreatedLength() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLength
}

// SetPropertiesCount returns the number of SetProperties calls.
func (m *MockService) SetPropertiesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setPropsN
}

// FinalProperties returns the properties passed to the last finalizing call
// (PutBlockList or SetProperties) and whether one happened.
func (m *MockService) FinalProperties() (blobapi.Properties, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalProps, m.finalPropsSet
}

// ClearPagesCount returns the number of ClearPages calls.
func (m *MockService) ClearPagesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearN
}

// DeleteCount returns the number of Delete calls.
func (m *MockService) DeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteN
}
