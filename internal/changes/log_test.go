package changes_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/serroba/docstore/internal/changes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAssignsIncreasingSeqs(t *testing.T) {
	t.Parallel()

	log := changes.NewLog()

	assert.Equal(t, int64(0), log.LastSeq())
	assert.Equal(t, changes.Entry{Seq: 1, ID: "a"}, log.Append("a"))
	assert.Equal(t, changes.Entry{Seq: 2, ID: "b"}, log.Append("b"))
	assert.Equal(t, int64(2), log.LastSeq())
}

func TestLog_SinceYieldsEachDocumentOnceAtItsLatestSeq(t *testing.T) {
	t.Parallel()

	log := changes.NewLog()
	log.Append("a")
	log.Append("b")
	log.Append("a")
	log.Append("c")

	got := slices.Collect(log.Since(0))
	assert.Equal(t, []changes.Entry{{Seq: 2, ID: "b"}, {Seq: 3, ID: "a"}, {Seq: 4, ID: "c"}}, got)

	got = slices.Collect(log.Since(3))
	assert.Equal(t, []changes.Entry{{Seq: 4, ID: "c"}}, got)

	assert.Empty(t, slices.Collect(log.Since(4)))
	assert.Len(t, slices.Collect(log.Since(-10)), 3)
}

func TestLog_SinceIsBoundedAndRestartable(t *testing.T) {
	t.Parallel()

	log := changes.NewLog()
	log.Append("a")
	log.Append("b")

	feed := log.Since(0)

	log.Append("c")

	first := slices.Collect(feed)
	second := slices.Collect(feed)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestLog_SinceStopsEarly(t *testing.T) {
	t.Parallel()

	log := changes.NewLog()
	for _, id := range []string{"a", "b", "c"} {
		log.Append(id)
	}

	var seen []string

	for e := range log.Since(0) {
		seen = append(seen, e.ID)
		if len(seen) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestLog_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	log := changes.NewLog()

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			log.Append("doc")
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(50), log.LastSeq())

	got := slices.Collect(log.Since(0))
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].Seq)
}
