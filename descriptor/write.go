package descriptor

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// FileMode is the permission of written descriptor files.
const FileMode os.FileMode = 0o644

// Render produces the bytes to persist: the standalone descriptor, or the
// template with the descriptor merged in when template is non-nil.
func Render(d *Descriptor, template []byte) ([]byte, error) {
	if template == nil {
		return d.Encode()
	}
	return MergeTemplate(template, d)
}

// WriteFile atomically replaces path with data. Readers observe either the
// previous file or the complete new one.
func WriteFile(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
