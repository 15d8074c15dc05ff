package codemapper

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/errors"
)

func TestRunPOIQueue_AllSucceed(t *testing.T) {
	pois := []POI{{Mode: ModeArchitectural, Text: "a"}, {Mode: ModeOperational, Text: "b"}}
	outcomes, err := runPOIQueue(context.Background(), 2, pois, func(_ context.Context, index int, poi POI) (string, error) {
		return "section " + poi.Text, nil
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "section a", outcomes[0].section)
	assert.Equal(t, "section b", outcomes[1].section)
	assert.False(t, outcomes[0].failed)
}

func TestRunPOIQueue_EmptyResultRetriesThenSucceeds(t *testing.T) {
	pois := []POI{{Mode: ModeArchitectural, Text: "a"}}
	var calls int32
	outcomes, err := runPOIQueue(context.Background(), 1, pois, func(_ context.Context, index int, poi POI) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", nil
		}
		return "second try", nil
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "second try", outcomes[0].section)
	assert.False(t, outcomes[0].failed)
}

func TestRunPOIQueue_RetryableFailureBecomesPlaceholder(t *testing.T) {
	pois := []POI{{Mode: ModeArchitectural, Text: "a"}}
	outcomes, err := runPOIQueue(context.Background(), 1, pois, func(_ context.Context, index int, poi POI) (string, error) {
		return "", errors.New(errors.ErrCodeResearchLLMRateLimit, "rate limited", nil)
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].failed)
	assert.Contains(t, outcomes[0].section, "failed")
}

func TestRunPOIQueue_TerminalErrorAborts(t *testing.T) {
	pois := []POI{{Mode: ModeArchitectural, Text: "a"}, {Mode: ModeArchitectural, Text: "b"}}
	_, err := runPOIQueue(context.Background(), 2, pois, func(_ context.Context, index int, poi POI) (string, error) {
		return "", errors.New(errors.ErrCodeInternal, "config missing", nil)
	})
	assert.Error(t, err)
}

func TestResolveJobs(t *testing.T) {
	assert.Equal(t, 4, resolveJobs(0, 10))
	assert.Equal(t, 2, resolveJobs(0, 2))
	assert.Equal(t, 3, resolveJobs(3, 10))
	assert.Equal(t, 5, resolveJobs(10, 5))
}
