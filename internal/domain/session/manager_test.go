package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseDir = t.TempDir()
	m, err := NewManager(cfg, nil, opts...)
	require.NoError(t, err)
	return m
}

func textFile(name, body string) IncomingFile {
	return IncomingFile{Name: name, Size: int64(len(body)), ContentType: "text/plain", Reader: strings.NewReader(body)}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestAddThenList(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sid, err := m.Create(ctx)
	require.NoError(t, err)

	body := "The derivative of x^2 is 2x."
	entry, err := m.AddFile(ctx, sid, textFile("calc notes.txt", body))
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), entry.Size)
	assert.Equal(t, "calc notes.txt", entry.OriginalName)
	assert.Equal(t, string(entry.ID)+"_calc_notes.txt", entry.StoredName)
	assert.True(t, strings.HasPrefix(entry.ContentType, "text/plain"))
	assert.Equal(t, "text/plain", entry.ClaimedType)

	files, err := m.ListFiles(ctx, sid)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, entry.ID, files[0].ID)
	assert.Equal(t, "calc_notes.txt", files[0].Filename)
	assert.Equal(t, int64(len(body)), files[0].Size)
	assert.False(t, files[0].UploadedAt.IsZero())
}

func TestAddFileNamesNeverCollide(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	first, err := m.AddFile(ctx, sid, textFile("same.txt", "one"))
	require.NoError(t, err)
	second, err := m.AddFile(ctx, sid, textFile("same.txt", "two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredName, second.StoredName)

	files, err := m.ListFiles(ctx, sid)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, first.ID, files[0].ID, "listing is in upload order")
}

func TestAddFileRejectsOversize(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = m.AddFile(ctx, sid, textFile("keep.txt", "small"))
	require.NoError(t, err)
	session, ok := m.Get(sid)
	require.True(t, ok)
	before := countFiles(t, session.Dir)

	t.Run("declared size", func(t *testing.T) {
		_, err := m.AddFile(ctx, sid, IncomingFile{
			Name:   "big.bin",
			Size:   DefaultMaxFileSize + 1,
			Reader: bytes.NewReader(nil),
		})
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.Equal(t, before, countFiles(t, session.Dir))
	})

	t.Run("undeclared size", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), DefaultMaxFileSize+1)
		_, err := m.AddFile(ctx, sid, IncomingFile{Name: "big.txt", Size: -1, Reader: bytes.NewReader(payload)})
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.Contains(t, err.Error(), "16MB")
		assert.Equal(t, before, countFiles(t, session.Dir), "no bytes persisted")
	})

	t.Run("exactly at limit", func(t *testing.T) {
		payload := bytes.Repeat([]byte("b"), DefaultMaxFileSize)
		entry, err := m.AddFile(ctx, sid, IncomingFile{Name: "edge.txt", Size: -1, Reader: bytes.NewReader(payload)})
		require.NoError(t, err)
		assert.Equal(t, int64(DefaultMaxFileSize), entry.Size)
	})
}

func TestAddFileValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		sid  id.SessionID
		file IncomingFile
	}{
		{"empty session", "", textFile("a.txt", "x")},
		{"malformed session", "../../tmp", textFile("a.txt", "x")},
		{"empty filename", sid, textFile("", "x")},
		{"unsafe filename", sid, textFile("../..", "x")},
		{"missing reader", sid, IncomingFile{Name: "a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddFile(ctx, tt.sid, tt.file)
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestAddFileUnwritableWorkspace(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	session, _ := m.Get(sid)
	require.NoError(t, os.RemoveAll(session.Dir))

	_, err = m.AddFile(ctx, sid, textFile("a.txt", "x"))
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindStorage, e.Kind)
	assert.NotContains(t, e.Message, session.Dir)
	assert.NotContains(t, e.Message, m.Config().BaseDir)
}

func TestLazyMaterialization(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid := id.NewSessionID()

	files, err := m.ListFiles(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, files)

	session, ok := m.Get(sid)
	require.True(t, ok)
	assert.DirExists(t, session.Dir)
}

func TestRemoveFile(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	entry, err := m.AddFile(ctx, sid, textFile("a.txt", "alpha"))
	require.NoError(t, err)

	removed, err := m.RemoveFile(ctx, sid, "01ZZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.RemoveFile(ctx, sid, string(entry.ID)[:12])
	require.NoError(t, err)
	assert.True(t, removed, "ids match by prefix")

	removed, err = m.RemoveFile(ctx, sid, string(entry.ID))
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = m.RemoveFile(ctx, sid, "")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	files, err := m.ListFiles(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReadFile(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	entry, err := m.AddFile(ctx, sid, textFile("essay.md", "# Title"))
	require.NoError(t, err)

	data, got, err := m.ReadFile(ctx, sid, string(entry.ID))
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))
	assert.Equal(t, "essay.md", got.OriginalName)

	_, _, err = m.ReadFile(ctx, sid, "01ZZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestEndSessionIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.AddFile(ctx, sid, textFile("a.txt", "x"))
	require.NoError(t, err)

	session, _ := m.Get(sid)

	removed, err := m.EndSession(ctx, sid)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoDirExists(t, session.Dir)

	removed, err = m.EndSession(ctx, sid)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, m.Count())
}

func TestSweepExpired(t *testing.T) {
	now := time.Now()
	clock := now.Add(-2 * time.Hour)
	m := newTestManager(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	old := id.NewSessionID()
	_, err := m.ListFiles(ctx, old)
	require.NoError(t, err)

	clock = now.Add(-10 * time.Minute)
	fresh := id.NewSessionID()
	_, err = m.ListFiles(ctx, fresh)
	require.NoError(t, err)

	oldSession, _ := m.Get(old)

	clock = now
	assert.Equal(t, 1, m.SweepExpired(ctx))

	_, ok := m.Get(old)
	assert.False(t, ok)
	assert.NoDirExists(t, oldSession.Dir)

	_, ok = m.Get(fresh)
	assert.True(t, ok)
}

func TestSweepSkipsBusySession(t *testing.T) {
	clock := time.Now().Add(-2 * time.Hour)
	m := newTestManager(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	sid := id.NewSessionID()
	ws, err := m.acquire(ctx, sid)
	require.NoError(t, err)

	clock = time.Now()
	assert.Equal(t, 0, m.SweepExpired(ctx), "locked session is skipped")
	ws.mu.Unlock()

	assert.Equal(t, 1, m.SweepExpired(ctx))
}

func TestCreateSweepsFirst(t *testing.T) {
	clock := time.Now().Add(-3 * time.Hour)
	m := newTestManager(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	stale, err := m.Create(ctx)
	require.NoError(t, err)

	clock = time.Now()
	_, err = m.Create(ctx)
	require.NoError(t, err)

	_, ok := m.Get(stale)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}

func TestRestartForgetsSessions(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.BaseDir = base
	ctx := context.Background()

	first, err := NewManager(cfg, nil)
	require.NoError(t, err)
	sid, err := first.Create(ctx)
	require.NoError(t, err)
	_, err = first.AddFile(ctx, sid, textFile("a.txt", "x"))
	require.NoError(t, err)

	unrelated := filepath.Join(base, "keep-me")
	require.NoError(t, os.MkdirAll(unrelated, 0o750))

	second, err := NewManager(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Count())
	assert.NoDirExists(t, filepath.Join(base, string(sid)), "orphaned workspace reclaimed")
	assert.DirExists(t, unrelated)

	files, err := second.ListFiles(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestConcurrentSameSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := m.AddFile(ctx, sid, textFile(fmt.Sprintf("f%d.txt", i), "data"))
			if !assert.NoError(t, err) {
				return
			}
			_, err = m.ListFiles(ctx, sid)
			assert.NoError(t, err)
			if i%2 == 0 {
				removed, err := m.RemoveFile(ctx, sid, string(entry.ID))
				assert.NoError(t, err)
				assert.True(t, removed)
			}
		}(i)
	}
	wg.Wait()

	files, err := m.ListFiles(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestEndSessionDuringUploads(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	sid, err := m.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddFile(ctx, sid, textFile(fmt.Sprintf("f%d.txt", i), "data"))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := m.EndSession(ctx, sid)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the table and the disk agree.
	session, live := m.Get(sid)
	if live {
		assert.DirExists(t, session.Dir)
	} else {
		assert.NoDirExists(t, filepath.Join(m.Config().BaseDir, string(sid)))
	}
}

func TestCancelledContext(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.AddFile(ctx, id.NewSessionID(), textFile("a.txt", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
