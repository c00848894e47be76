package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry(namedJob("outbox-retention"), nil, namedJob("search-reindex"))

	jobs := reg.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "outbox-retention", jobs[0].Name())
	assert.Equal(t, "search-reindex", jobs[1].Name())

	jobs[0] = nil
	assert.NotNil(t, reg.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	var reg Registry
	require.NoError(t, reg.Register(namedJob("search-reindex")))
	require.Error(t, reg.Register(namedJob("search-reindex")))
	assert.Len(t, reg.Jobs(), 1)
}
