package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	id := uuid.New()

	opts, err := parseFlags([]string{"-pending", "-o", "tasks.ics", id.String()})
	require.NoError(t, err)
	assert.Equal(t, id, opts.enrollmentID)
	assert.True(t, opts.pendingOnly)
	assert.Equal(t, "tasks.ics", opts.output)
	assert.Equal(t, ".env", opts.envFile)

	for _, args := range [][]string{
		{},
		{"not-a-uuid"},
		{id.String(), id.String()},
	} {
		_, err := parseFlags(args)
		assert.Error(t, err, "args %v", args)
	}
}
