package logconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrodb/redolog/common"
)

func validConfig() Config {
	return Config{
		LogBufferSize:     64 * 1024,
		LogFileSize:       64 * 1024 * 1024,
		LogWriteAheadSize: 4096,
		FileFlushMethod:   FlushDSync,
		ThreadConcurrency: 8,
		PageSize:          DefaultPageSize,
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsSmallBuffer(t *testing.T) {
	c := validConfig()
	c.LogBufferSize = 3 * common.BlockSize
	assert.Error(t, c.Validate())
}

func TestValidateRejectsMisalignedFileSize(t *testing.T) {
	c := validConfig()
	c.LogFileSize = 100
	assert.Error(t, c.Validate())
}

func TestValidateRejectsZeroPageSize(t *testing.T) {
	c := validConfig()
	c.PageSize = 0
	assert.Error(t, c.Validate())
}

func TestDeriveCapacityOrdering(t *testing.T) {
	cap, err := DeriveCapacity(64*1024*1024, 8)
	require.NoError(t, err)
	assert.Less(t, cap.MaxModifiedAgeAsync, cap.MaxModifiedAgeSync)
	assert.Less(t, cap.MaxModifiedAgeSync, cap.MaxCheckpointAge)
	assert.Less(t, cap.MaxCheckpointAgeAsync, cap.MaxCheckpointAge)
	assert.Greater(t, cap.LogCapacity, uint64(0))
}

func TestDeriveCapacityTooSmall(t *testing.T) {
	_, err := DeriveCapacity(8*common.BlockSize, 64)
	require.Error(t, err)
	var tooSmall *ErrConfigTooSmall
	assert.ErrorAs(t, err, &tooSmall)
}
