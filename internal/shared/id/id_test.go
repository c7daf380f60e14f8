package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestFileIDsSortByCreation(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, NewFileID().String())
	}

	assert.True(t, sort.StringsAreSorted(ids), "monotonic ULIDs should sort in generation order")
	for _, fid := range ids {
		assert.Len(t, fid, FileIDLength)
		assert.True(t, IsFileID(fid))
	}
}

func TestConcurrentGeneration(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[FileID]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				fid := NewFileID()
				mu.Lock()
				seen[fid] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}

func TestRequestIDPrefix(t *testing.T) {
	rid := NewRequestID().String()
	require.True(t, strings.HasPrefix(rid, RequestPrefix+"_"))
	assert.True(t, IsFileID(strings.TrimPrefix(rid, RequestPrefix+"_")))
}

func TestParseSessionID(t *testing.T) {
	sid := NewSessionID()

	parsed, err := ParseSessionID(strings.ToUpper(sid.String()))
	require.NoError(t, err)
	assert.Equal(t, sid, parsed)

	for _, bad := range []string{"", "   ", "../etc", "abc", "sess_123"} {
		_, err := ParseSessionID(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewFileID())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("not-a-ulid")
	assert.Error(t, err)
}
