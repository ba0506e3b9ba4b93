package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	return NewStore(root)
}

func TestValidateIDRejectsPathComponents(t *testing.T) {
	require.NoError(t, ValidateID("abc123"))
	require.ErrorIs(t, ValidateID("../escape"), ErrInvalidID)
	require.ErrorIs(t, ValidateID("a/b"), ErrInvalidID)
	require.ErrorIs(t, ValidateID("a\\b"), ErrInvalidID)
	require.ErrorIs(t, ValidateID(""), ErrInvalidID)
	require.ErrorIs(t, ValidateID(".."), ErrInvalidID)
}

func TestGetOrCreateCreatesDirectory(t *testing.T) {
	st := newTestStore(t)
	s, created, err := st.GetOrCreate("s1")
	require.NoError(t, err)
	require.True(t, created)
	require.DirExists(t, s.Dir)

	again, created2, err := st.GetOrCreate("s1")
	require.NoError(t, err)
	require.False(t, created2)
	require.Same(t, s, again)
}

func TestGetOrCreateRejectsInvalidID(t *testing.T) {
	st := newTestStore(t)
	_, _, err := st.GetOrCreate("../etc")
	require.ErrorIs(t, err, ErrInvalidID)
	require.Equal(t, 0, st.Count())
}

func TestTouchUpdatesHeartbeatMonotonically(t *testing.T) {
	st := newTestStore(t)
	s, _, err := st.GetOrCreate("s1")
	require.NoError(t, err)
	s.LastHeartbeat = time.Now().Add(-time.Hour)
	before := s.LastHeartbeat

	require.True(t, st.Touch("s1"))
	require.True(t, s.LastHeartbeat.After(before))

	require.False(t, st.Touch("missing"))
}

func TestForEachSnapshotsBeforeIterating(t *testing.T) {
	st := newTestStore(t)
	_, _, _ = st.GetOrCreate("a")
	_, _, _ = st.GetOrCreate("b")

	seen := map[string]bool{}
	st.ForEach(func(s *Session) {
		seen[s.ID] = true
	})
	require.Len(t, seen, 2)
}

func TestRemoveKillsAndDeletesDirectory(t *testing.T) {
	st := newTestStore(t)
	s, _, err := st.GetOrCreate("s1")
	require.NoError(t, err)
	dir := s.Dir

	st.Remove("s1")
	_, ok := st.Lookup("s1")
	require.False(t, ok)
	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}

func TestRemoveOnUnknownIDIsNoop(t *testing.T) {
	st := newTestStore(t)
	st.Remove("never-existed")
}

func TestResetRootRecreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hls")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stale"), 0o755))

	require.NoError(t, ResetRoot(root))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}
