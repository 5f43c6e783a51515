package annotate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/core"
)

func TestLogFormats(t *testing.T) {
	log := New(nil)
	log.Message("Blocklist", "example.com not found in any list")
	log.Warning("entries/e/example.com.json", "example.org is unranked", "example.org doesn't have a SimilarWeb rank.")
	log.Error("entries/x.json", "x is unranked", "x doesn't have a SimilarWeb rank.")

	require.Equal(t, []string{
		"Blocklist: example.com not found in any list",
		"::warning file=entries/e/example.com.json,title=example.org is unranked::example.org doesn't have a SimilarWeb rank.",
		"::error file=entries/x.json,title=x is unranked::x doesn't have a SimilarWeb rank.",
	}, log.Lines())
}

func TestLogDrainClears(t *testing.T) {
	log := New(nil)
	log.Message("Rank", "one")
	log.Message("Rank", "two")

	drained := log.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, 0, log.Len())
	require.Empty(t, log.Lines())
}

func TestLogConcurrentAppend(t *testing.T) {
	log := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Error(fmt.Sprintf("entries/%d.json", i), "title", "message")
		}(i)
	}
	wg.Wait()

	entries := log.Entries()
	require.Len(t, entries, 50)
	for _, entry := range entries {
		require.Equal(t, core.LogError, entry.Kind)
	}
}

func TestNilLogIsSafe(t *testing.T) {
	var log *Log
	log.Message("Rank", "ignored")
	require.Nil(t, log.Entries())
	require.Equal(t, 0, log.Len())
}
