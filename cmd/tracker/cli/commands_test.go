package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	cmd := NewJobsCommand(time.Second)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"trigger", "consol:refresh"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job consol:refresh")
}

func TestTriggerRequiresName(t *testing.T) {
	cmd := NewJobsCommand(time.Second)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"trigger"})
	assert.Error(t, cmd.Execute())
}

func TestTriggerHelpListsJobs(t *testing.T) {
	cmd := NewJobsCommand(time.Second)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"trigger", "--help"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "manifest:stage_resync")
	assert.Contains(t, out.String(), "dashboard:warmup")
}

func TestLoadRedisEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")
	opts, err := LoadRedisEnv()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.InspectQueue()
	assert.Error(t, err)
	_, err = c.ListScheduled(5)
	assert.Error(t, err)
}
