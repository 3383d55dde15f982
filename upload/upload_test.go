package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/sufrib"
)

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	root := t.TempDir()
	a, err := NewAssembler(filepath.Join(root, "tmp"), filepath.Join(root, "uploads"))
	require.NoError(t, err)
	return a
}

func TestWrite_Chunks(t *testing.T) {
	a := newAssembler(t)

	path, done, err := a.Write(Chunk{Filename: "survey.RMB", Chunk: 0, Chunks: 3, Data: strings.NewReader("one,")})
	require.NoError(t, err)
	assert.False(t, done)

	_, done, err = a.Write(Chunk{Filename: "survey.RMB", Chunk: 1, Chunks: 3, Data: strings.NewReader("two,")})
	require.NoError(t, err)
	assert.False(t, done)

	_, done, err = a.Write(Chunk{Filename: "survey.RMB", Chunk: 2, Chunks: 3, Data: strings.NewReader("three")})
	require.NoError(t, err)
	assert.True(t, done)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one,two,three", string(data))
}

func TestWrite_SingleChunkDefaults(t *testing.T) {
	a := newAssembler(t)

	_, done, err := a.Write(Chunk{Filename: "survey.rib", Data: strings.NewReader("data")})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestWrite_FirstChunkTruncates(t *testing.T) {
	a := newAssembler(t)

	_, _, err := a.Write(Chunk{Filename: "survey.rib", Data: strings.NewReader("old contents")})
	require.NoError(t, err)
	path, _, err := a.Write(Chunk{Filename: "survey.rib", Data: strings.NewReader("new")})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWrite_Errors(t *testing.T) {
	a := newAssembler(t)

	_, _, err := a.Write(Chunk{Filename: "survey.txt", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, sufrib.ErrBadExtension)

	_, _, err = a.Write(Chunk{Filename: "survey.rib", Chunk: 3, Chunks: 2, Data: strings.NewReader("x")})
	assert.Error(t, err)
}

func TestWrite_StripsDirectories(t *testing.T) {
	a := newAssembler(t)

	path, _, err := a.Write(Chunk{Filename: "../../evil.rib", Data: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.TempDir, "evil.rib"), path)
}

func TestStore(t *testing.T) {
	a := newAssembler(t)

	tmp, _, err := a.Write(Chunk{Filename: "survey.RIB", Data: strings.NewReader("data")})
	require.NoError(t, err)

	stored, err := a.Store(tmp)
	require.NoError(t, err)
	assert.Equal(t, a.Dir, filepath.Dir(stored))
	assert.Equal(t, ".rib", filepath.Ext(stored))

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, Remove(stored))
	require.NoError(t, Remove(stored))
}
