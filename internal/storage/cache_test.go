package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingCache_PutGet(t *testing.T) {
	c, err := NewListingCache(8)
	require.NoError(t, err)

	entries := []FileLike{{Path: "a.mp3", Name: "a.mp3"}}
	c.Put("st1", "Music", entries)

	got, ok := c.Get("st1", "Music")
	require.True(t, ok)
	assert.Equal(t, entries, got)

	_, ok = c.Get("st1", "Other")
	assert.False(t, ok)
	_, ok = c.Get("st2", "Music")
	assert.False(t, ok)
}

func TestListingCache_DropStorage(t *testing.T) {
	c, err := NewListingCache(8)
	require.NoError(t, err)

	c.Put("st1", "Music", nil)
	c.Put("st1", "Books", nil)
	c.Put("st2", "Music", nil)

	c.DropStorage("st1")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("st2", "Music")
	assert.True(t, ok)

	// Empty id drops everything.
	c.DropStorage("")
	assert.Zero(t, c.Len())
}

func TestListingCache_FollowsRegistry(t *testing.T) {
	r := newTestRegistry(t)
	c, err := NewListingCache(8)
	require.NoError(t, err)
	c.AttachTo(r)

	dev := testDevice("a")
	loc, err := r.AddDevice(dev, "/mnt/a")
	require.NoError(t, err)
	c.Put(loc.ID(), "", []FileLike{{Path: "x", Name: "x"}})

	r.RemoveDevice(dev)
	_, ok := c.Get(loc.ID(), "")
	assert.False(t, ok)
}
