package codeindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestPrefix(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"Put-001", "PUT-002", "PUT-010", "OVS-1", ""}))
	require.NoError(t, idx.Replace(2, []string{"PUT-003"}))

	codes, err := idx.Prefix(1, "put-00", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Put-001", "PUT-002"}, codes)

	codes, err = idx.Prefix(1, "PUT", 2)
	require.NoError(t, err)
	assert.Len(t, codes, 2)

	codes, err = idx.Prefix(3, "PUT", 0)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestReplace(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"A1", "A2"}))
	require.NoError(t, idx.Replace(1, []string{"B1"}))

	codes, err := idx.Prefix(1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, codes)
}

func TestFuzzy(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"PUT-001", "PUT-002", "PUT-101", "RWA-7"}))

	matches, err := idx.Fuzzy(1, "put-001", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Code: "PUT-001", Distance: 0},
		{Code: "PUT-002", Distance: 1},
		{Code: "PUT-101", Distance: 1},
	}, matches)

	matches, err = idx.Fuzzy(1, "PUT-001", 1, 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFuzzy_Substitutions(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"PUT-001", "PUT-002", "PUT-101"}))

	// two substituted characters are two edits
	matches, err := idx.Fuzzy(1, "PUT-111", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Code: "PUT-101", Distance: 1},
		{Code: "PUT-001", Distance: 2},
	}, matches)
}

func TestRemove(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"PUT-001"}))

	matches, err := idx.Fuzzy(1, "PUT-001", 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, idx.Remove(1))

	matches, err = idx.Fuzzy(1, "PUT-001", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	codes, err := idx.Prefix(1, "", 0)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestBKTree_Duplicates(t *testing.T) {
	tree := &bkTree{}
	tree.insert("abc")
	tree.insert("ABC")
	tree.insert("abd")
	assert.Equal(t, 2, tree.size)
}

func TestReplace_ConcurrentFuzzy(t *testing.T) {
	idx := openIndex(t)
	require.NoError(t, idx.Replace(1, []string{"PUT-001"}))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_, err := idx.Fuzzy(1, "PUT-001", 1, 0)
					assert.NoError(t, err)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		codes := make([]string, 20)
		for j := range codes {
			codes[j] = fmt.Sprintf("PUT-%d-%02d", i, j)
		}
		require.NoError(t, idx.Replace(1, codes))
	}
	require.NoError(t, idx.Replace(1, []string{"FINAL-1", "FINAL-2"}))
	close(done)
	wg.Wait()

	matches, err := idx.Fuzzy(1, "FINAL-1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Code: "FINAL-1", Distance: 0}, {Code: "FINAL-2", Distance: 1}}, matches)
}
