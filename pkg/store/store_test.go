package store

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	require.Len(t, id, 32)
	raw, err := hex.DecodeString(id)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
	assert.NotEqual(t, id, NewID())
}

func TestPutGet(t *testing.T) {
	s := New(Policy{}, nil)
	vol := models.NewVolume(2, 2, 2)

	id := s.Put(&Entry{Volume: vol, Filename: "sub-01_T1w.nii.gz"})
	entry, err := s.Get(id)
	require.NoError(t, err)
	assert.Same(t, vol, entry.Volume)
	assert.Equal(t, "sub-01_T1w.nii.gz", entry.Filename)
	assert.False(t, entry.LoadedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	s := New(Policy{}, nil)

	_, err := s.Get("deadbeef")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = s.Get("")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	s := New(Policy{Capacity: 2}, func(id string, _ *Entry) {
		evicted = append(evicted, id)
	})

	first := s.Put(&Entry{Volume: models.NewVolume(1, 1, 1)})
	second := s.Put(&Entry{Volume: models.NewVolume(1, 1, 1)})

	// touch first so second becomes the eviction candidate
	_, err := s.Get(first)
	require.NoError(t, err)

	third := s.Put(&Entry{Volume: models.NewVolume(1, 1, 1)})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{second}, evicted)

	_, err = s.Get(second)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	_, err = s.Get(third)
	assert.NoError(t, err)
}

func TestTTLExpiry(t *testing.T) {
	s := New(Policy{TTL: 20 * time.Millisecond}, nil)
	id := s.Put(&Entry{Volume: models.NewVolume(1, 1, 1)})

	require.Eventually(t, func() bool {
		_, err := s.Get(id)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
