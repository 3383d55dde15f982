package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tebben/riool/sufrib"

	log "github.com/sirupsen/logrus"
)

// Chunk is one part of a file sent by the browser uploader. Small files are
// sent as a single chunk.
type Chunk struct {
	Filename string
	// Chunk is the zero based index of this part.
	Chunk int
	// Chunks is the total number of parts, at least 1.
	Chunks int
	Data   io.Reader
}

// Assembler puts chunks back together in TempDir and moves completed files
// to Dir.
type Assembler struct {
	TempDir string
	Dir     string
}

func NewAssembler(tempDir, dir string) (*Assembler, error) {
	for _, d := range []string{tempDir, dir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory %s: %w", d, err)
		}
	}
	return &Assembler{TempDir: tempDir, Dir: dir}, nil
}

// Write stores a chunk. It returns the path of the temporary file and
// whether this was the last chunk.
func (a *Assembler) Write(c Chunk) (string, bool, error) {
	if _, err := sufrib.Kind(c.Filename); err != nil {
		return "", false, err
	}
	if c.Chunks < 1 {
		c.Chunks = 1
	}
	if c.Chunk < 0 || c.Chunk >= c.Chunks {
		return "", false, fmt.Errorf("chunk %d out of range, file has %d chunks", c.Chunk, c.Chunks)
	}

	// never trust directories in a browser supplied name
	path := filepath.Join(a.TempDir, filepath.Base(c.Filename))

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if c.Chunk == 0 {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, c.Data); err != nil {
		return "", false, fmt.Errorf("failed to write chunk %d of %s: %w", c.Chunk, c.Filename, err)
	}

	done := c.Chunk == c.Chunks-1
	if done {
		log.Debugf("Received last chunk of %s", c.Filename)
	}
	return path, done, nil
}

// Store moves a completed temporary file into Dir under a unique name, the
// extension is kept.
func (a *Assembler) Store(tmp string) (string, error) {
	ext := strings.ToLower(filepath.Ext(tmp))
	dst := filepath.Join(a.Dir, uuid.NewString()+ext)

	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("failed to move upload %s: %w", tmp, err)
	}
	return dst, nil
}

// Remove deletes a stored file, a missing file is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
