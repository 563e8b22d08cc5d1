package capture

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DebugWriter saves transient copies of captured frames for inspection.
// A zero value (empty Dir) discards everything.
type DebugWriter struct {
	Dir string
}

// SaveFrame writes a captured frame to the debug directory and returns its
// path. Failures are logged, never propagated; debug artifacts are not part
// of the verification contract.
func (w *DebugWriter) SaveFrame(data []byte) string {
	if w == nil || w.Dir == "" {
		return ""
	}
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		log.Printf("debug capture dir unavailable: %v", err)
		return ""
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("capture_%s.jpg", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Printf("failed to save debug frame: %v", err)
		return ""
	}
	return path
}
