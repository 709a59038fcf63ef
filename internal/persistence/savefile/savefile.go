// Package savefile stores copies of the encoded ledger on disk: one JSON
// header line followed by the save-node text, zstd-compressed.
package savefile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"scrapyard.dev/internal/cfgnode"
)

const (
	FormatVersion = 1
	Ext           = ".sav.zst"
)

type Header struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Slot      string    `json:"slot"`
	SavedAt   time.Time `json:"saved_at"`
	Parts     int       `json:"parts"`
	Resources int       `json:"resources"`
}

// PathFor is where a save of slot taken at t goes under dir.
func PathFor(dir, slot string, t time.Time) string {
	return filepath.Join(dir, SafeSlot(slot), fmt.Sprintf("%d%s", t.UnixMilli(), Ext))
}

// SafeSlot maps a slot name to a directory name.
func SafeSlot(slot string) string {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, slot)
}

func Write(path string, h Header, node []byte) error {
	if h.Version == 0 {
		h.Version = FormatVersion
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeTo(f, h, node); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeTo(w io.Writer, h Header, node []byte) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, err := json.Marshal(h)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(node); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read returns the header and the raw save-node text.
func Read(path string) (Header, []byte, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("%s: header: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("%s: header: %w", filepath.Base(path), err)
	}
	if h.Version != FormatVersion {
		return h, nil, fmt.Errorf("%s: unsupported version %d", filepath.Base(path), h.Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("%s: body: %w", filepath.Base(path), err)
	}
	return h, body, nil
}

// ReadNode is Read followed by parsing the save-node text.
func ReadNode(path string) (Header, *cfgnode.Node, error) {
	h, body, err := Read(path)
	if err != nil {
		return h, nil, err
	}
	root, err := cfgnode.Parse(strings.NewReader(string(body)))
	if err != nil {
		return h, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return h, root, nil
}

// List returns the save files of a slot directory, oldest first.
func List(slotDir string) ([]string, error) {
	ents, err := os.ReadDir(slotDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	type file struct {
		path  string
		stamp int64
	}
	var files []file
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		stamp, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), Ext), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, file{path: filepath.Join(slotDir, e.Name()), stamp: stamp})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].stamp < files[j].stamp })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// Latest is the newest save of slot under dir, "" when there is none.
func Latest(dir, slot string) string {
	files, err := List(filepath.Join(dir, SafeSlot(slot)))
	if err != nil || len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

// Prune keeps the newest keep saves of a slot directory. keep <= 0 keeps
// everything.
func Prune(slotDir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	files, err := List(slotDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(files)-removed > keep {
		if err := os.Remove(files[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
