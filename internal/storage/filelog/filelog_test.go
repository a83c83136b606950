package filelog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(room string, i int) storage.Record {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return storage.NewRecord(room, fmt.Sprintf("user%d", i%3), fmt.Sprintf("message number %d", i), base.Add(time.Duration(i)*time.Millisecond))
}

// forwardTail is the reference implementation: read everything, keep the last n.
func forwardTail(t *testing.T, path, room string, n int) []storage.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	var out []storage.Record
	for _, line := range lines {
		if rec, ok := DecodeLine(room, line); ok {
			out = append(out, rec)
		}
	}
	return out
}

func TestSanitizeRoom(t *testing.T) {
	cases := map[string]string{
		"general":          "general",
		"dev-ops_2":        "dev-ops_2",
		"../../etc/passwd": "etcpasswd",
		"a b.c":            "abc",
		"":                 "room",
		"///":              "room",
		"café":             "café",
		"room²":            "room²",
		"½ price":          "½price",
		"Ⅻ":                "Ⅻ",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeRoom(in), "room %q", in)
	}
}

func TestPathStaysInsideDir(t *testing.T) {
	store := newTestStore(t)
	path := store.Path("../../outside")
	assert.Equal(t, store.Dir(), filepath.Dir(path))
	assert.Equal(t, "outside.txt", filepath.Base(path))
}

func TestAppendWritesLineFormat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := storage.Record{Room: "general", Username: "alice", Text: "hi there", Timestamp: "2024-05-01T12:00:00Z"}
	require.NoError(t, store.Append(ctx, rec))

	data, err := os.ReadFile(store.Path("general"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z|alice|hi there\n", string(data))
}

func TestTailMissingFile(t *testing.T) {
	store := newTestStore(t)
	records, err := store.Tail(context.Background(), "nothing-here", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTailMatchesForwardRead(t *testing.T) {
	const k = 5
	sizes := []int{0, 1, k, k + 1000}
	chunks := []int{1, 3, 7, 64, defaultChunkSize}

	for _, lines := range sizes {
		for _, chunk := range chunks {
			t.Run(fmt.Sprintf("lines=%d/chunk=%d", lines, chunk), func(t *testing.T) {
				store := newTestStore(t, WithChunkSize(chunk))
				ctx := context.Background()
				for i := 0; i < lines; i++ {
					require.NoError(t, store.Append(ctx, record("general", i)))
				}

				got, err := store.Tail(ctx, "general", k)
				require.NoError(t, err)
				want := forwardTail(t, store.Path("general"), "general", k)
				assert.Equal(t, want, got)

				if lines >= k {
					require.Len(t, got, k)
					assert.Equal(t, record("general", lines-1), got[k-1])
					assert.Equal(t, record("general", lines-k), got[0])
				} else {
					assert.Len(t, got, lines)
				}
			})
		}
	}
}

func TestTailReturnsNewestNotOldestWithinOneChunk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, store.Append(ctx, record("busy", i)))
	}

	got, err := store.Tail(ctx, "busy", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "message number 47", got[0].Text)
	assert.Equal(t, "message number 49", got[2].Text)
}

func TestTailSkipsMalformedLines(t *testing.T) {
	store := newTestStore(t, WithChunkSize(5))
	content := strings.Join([]string{
		"2024-05-01T12:00:00Z|alice|first",
		"garbage without delimiters",
		"",
		"2024-05-01T12:00:01Z|bob",
		"2024-05-01T12:00:02Z|carol|pipes | stay | in text",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(store.Path("mixed"), []byte(content), 0o644))

	got, err := store.Tail(context.Background(), "mixed", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "carol", got[1].Username)
	assert.Equal(t, "pipes | stay | in text", got[1].Text)
}

func TestTailReadsUnterminatedLastLine(t *testing.T) {
	store := newTestStore(t, WithChunkSize(4))
	content := "2024-05-01T12:00:00Z|alice|one\n2024-05-01T12:00:01Z|bob|two"
	require.NoError(t, os.WriteFile(store.Path("partial"), []byte(content), 0o644))

	got, err := store.Tail(context.Background(), "partial", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Text)
}

func TestRoomsSharingAFileShareRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, record("a.b", 1)))

	got, err := store.Tail(ctx, "ab", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ab", got[0].Room)
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Append(context.Background(), record("general", 1))
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = store.Tail(context.Background(), "general", 1)
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestTailLinesLargeLinesAcrossChunks(t *testing.T) {
	long := strings.Repeat("x", 100)
	content := "a\n" + long + "\nb\n"
	r := strings.NewReader(content)

	lines, err := tailLines(r, int64(len(content)), 2, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{long, "b"}, lines)
}
