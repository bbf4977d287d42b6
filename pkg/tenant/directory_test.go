package tenant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
)

type fakeLister struct {
	companies []apiclient.Company
	err       error
	calls     atomic.Int32
}

func (f *fakeLister) Companies(ctx context.Context) ([]apiclient.Company, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.companies, nil
}

func TestDirectoryCachesLookups(t *testing.T) {
	lister := &fakeLister{companies: []apiclient.Company{
		{ID: 1, Slug: "acme"},
		{ID: 2, Slug: "globex"},
	}}
	dir := NewDirectory(lister, time.Minute, nil)
	ctx := context.Background()

	exists, err := dir.Exists(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, exists)

	// Every slug from the fetched list is warm now.
	exists, err = dir.Exists(ctx, "globex")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 1, lister.calls.Load())
}

func TestDirectoryCachesNegativeAnswers(t *testing.T) {
	lister := &fakeLister{companies: []apiclient.Company{{ID: 1, Slug: "acme"}}}
	dir := NewDirectory(lister, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exists, err := dir.Exists(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, exists)
	}
	assert.EqualValues(t, 1, lister.calls.Load())
}

func TestDirectoryPropagatesFetchError(t *testing.T) {
	lister := &fakeLister{err: errors.New("backend down")}
	dir := NewDirectory(lister, time.Minute, nil)

	_, err := dir.Exists(context.Background(), "acme")
	require.Error(t, err)
}

func TestDirectoryRefreshWarmsCache(t *testing.T) {
	lister := &fakeLister{companies: []apiclient.Company{{ID: 1, Slug: "acme"}}}
	dir := NewDirectory(lister, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, dir.Refresh(ctx))

	exists, err := dir.Exists(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 1, lister.calls.Load(), "lookup served from the refreshed cache")
}
