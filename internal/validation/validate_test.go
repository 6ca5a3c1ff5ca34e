package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blob/errors"
)

func TestValidateContainerName(t *testing.T) {
	tests := []struct {
		name      string
		container string
		wantErr   bool
	}{
		{"valid simple", "my-container", false},
		{"valid digits", "container123", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 64), true},
		{"uppercase", "MyContainer", true},
		{"leading hyphen", "-container", true},
		{"trailing hyphen", "container-", true},
		{"invalid character", "con_tainer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContainerName(tt.container)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBlobKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid simple", "data.bin", false},
		{"valid nested", "backups/2024/data.bin", false},
		{"empty", "", true},
		{"too long", strings.Repeat("k", 1025), true},
		{"path traversal", "backups/../secrets", true},
		{"control character", "data\x00.bin", true},
		{"single dots ok", "backups/./data.bin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlobKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBlockChunkSize(t *testing.T) {
	assert.NoError(t, ValidateBlockChunkSize(blobtypes.DefaultChunkSize))
	assert.NoError(t, ValidateBlockChunkSize(1))
	assert.NoError(t, ValidateBlockChunkSize(blobtypes.MaxBlockChunkSize))

	assert.ErrorIs(t, ValidateBlockChunkSize(0), errors.ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidateBlockChunkSize(-1), errors.ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidateBlockChunkSize(blobtypes.MaxBlockChunkSize+1), errors.ErrInvalidChunkSize)
}

func TestValidatePageChunkSize(t *testing.T) {
	assert.NoError(t, ValidatePageChunkSize(512))
	assert.NoError(t, ValidatePageChunkSize(512*1024))
	assert.NoError(t, ValidatePageChunkSize(blobtypes.MaxTransactionalChunkSize))

	assert.ErrorIs(t, ValidatePageChunkSize(0), errors.ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidatePageChunkSize(100), errors.ErrInvalidChunkSize)
	assert.ErrorIs(t, ValidatePageChunkSize(blobtypes.MaxTransactionalChunkSize+512), errors.ErrInvalidChunkSize)
}

func TestValidatePageLength(t *testing.T) {
	assert.NoError(t, ValidatePageLength(0))
	assert.NoError(t, ValidatePageLength(1024*1024))

	assert.Error(t, ValidatePageLength(-512))
	assert.Error(t, ValidatePageLength(1000))
}

func TestValidatePageRange(t *testing.T) {
	assert.NoError(t, ValidatePageRange(0, 512))
	assert.NoError(t, ValidatePageRange(1024*1024, 512*1024))

	assert.Error(t, ValidatePageRange(-512, 512))
	assert.Error(t, ValidatePageRange(0, 0))
	assert.Error(t, ValidatePageRange(0, -512))
	assert.Error(t, ValidatePageRange(100, 512))
	assert.Error(t, ValidatePageRange(512, 1000))
}

func TestValidateBlockIDPrefix(t *testing.T) {
	assert.NoError(t, ValidateBlockIDPrefix("block"))
	assert.NoError(t, ValidateBlockIDPrefix("my_prefix-1"))

	assert.Error(t, ValidateBlockIDPrefix(""))
	assert.Error(t, ValidateBlockIDPrefix(strings.Repeat("p", 64)))
	assert.Error(t, ValidateBlockIDPrefix("bad prefix"))
}

func TestValidateConcurrency(t *testing.T) {
	assert.NoError(t, ValidateConcurrency(1))
	assert.NoError(t, ValidateConcurrency(64))

	assert.Error(t, ValidateConcurrency(0))
	assert.Error(t, ValidateConcurrency(-5))
}

func TestValidateSize(t *testing.T) {
	assert.NoError(t, ValidateSize(0))
	assert.NoError(t, ValidateSize(1<<40))

	assert.Error(t, ValidateSize(-1))
}
