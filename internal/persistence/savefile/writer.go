package savefile

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"scrapyard.dev/internal/session"
)

// Writer drains save entries to disk off the session loop.
type Writer struct {
	Dir      string
	KeepLast int
	Log      *zap.Logger
	// OnWritten is called after each successful write (may be nil).
	OnWritten func(path string, h Header)
}

func (w *Writer) Run(ctx context.Context, in <-chan session.SaveEntry) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-in:
			h := Header{
				Version:   FormatVersion,
				SessionID: e.SessionID,
				Slot:      e.Slot,
				SavedAt:   e.At,
				Parts:     e.Parts,
				Resources: e.Resources,
			}
			path := PathFor(w.Dir, e.Slot, e.At)
			if err := Write(path, h, e.Node); err != nil {
				log.Error("save write failed", zap.String("path", path), zap.Error(err))
				continue
			}
			if n, err := Prune(filepath.Dir(path), w.KeepLast); err != nil {
				log.Warn("save prune failed", zap.Error(err))
			} else if n > 0 {
				log.Debug("pruned old saves", zap.Int("removed", n))
			}
			if w.OnWritten != nil {
				w.OnWritten(path, h)
			}
		}
	}
}
