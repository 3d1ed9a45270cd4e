package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FS is the read-only filesystem view used to load document corpora.
type FS interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	WalkDir(root string, fn fs.WalkDirFunc) error

	Ext(name string) string
	Clean(name string) string
}

// ---------- OS-backed implementation ----------

type OS struct{}

func NewOS() OS { return OS{} }

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(filepath.Clean(name)) }
func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(filepath.Clean(name)) }
func (OS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(filepath.Clean(root), fn)
}
func (OS) Ext(name string) string   { return filepath.Ext(name) }
func (OS) Clean(name string) string { return filepath.Clean(name) }

// ---------- In-memory implementation (for tests) ----------

type Mem struct{ Fs afero.Fs }

func NewMem() Mem { return Mem{Fs: afero.NewMemMapFs()} }

func (m Mem) ReadFile(name string) ([]byte, error) { return afero.ReadFile(m.Fs, filepath.Clean(name)) }
func (m Mem) Stat(name string) (fs.FileInfo, error) { return m.Fs.Stat(filepath.Clean(name)) }
func (m Mem) WalkDir(root string, fn fs.WalkDirFunc) error {
	root = filepath.Clean(root)
	return afero.Walk(m.Fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(p, nil, err)
		}
		return fn(p, memDirEntry{info}, nil)
	})
}
func (m Mem) Ext(name string) string   { return filepath.Ext(name) }
func (m Mem) Clean(name string) string { return filepath.Clean(name) }

// WriteFile creates parent directories as needed. Only the in-memory FS is writable.
func (m Mem) WriteFile(name string, data []byte) error {
	cleaned := filepath.Clean(name)
	if err := m.Fs.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(m.Fs, cleaned, data, 0o644)
}

type memDirEntry struct{ os.FileInfo }

func (d memDirEntry) Type() fs.FileMode          { return d.Mode().Type() }
func (d memDirEntry) Info() (fs.FileInfo, error) { return d.FileInfo, nil }

// ---------- High-level façade used by document loaders ----------

type Ops struct{ FS FS }

func NewOps(fs FS) Ops { return Ops{FS: fs} }

type FileInfo struct {
	Path      string
	Extension string
	SizeBytes int64
}

// Inventory walks root and returns the files whose extension is one of
// extensions (all files when none are given), sorted by path.
// Dot-directories below root are skipped.
func (o Ops) Inventory(root string, extensions ...string) ([]FileInfo, error) {
	wanted := make(map[string]bool, len(extensions))
	for _, extension := range extensions {
		wanted[strings.ToLower(extension)] = true
	}
	var out []FileInfo
	err := o.FS.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != o.FS.Clean(root) && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(o.FS.Ext(p))
		if len(wanted) > 0 && !wanted[ext] {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		out = append(out, FileInfo{Path: p, Extension: ext, SizeBytes: info.Size()})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, err
}

func (o Ops) FileExists(p string) bool { _, err := o.FS.Stat(p); return err == nil }
