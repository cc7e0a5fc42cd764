package main

import (
	"os"
	"path/filepath"

	"github.com/wavepoint-avionics/sbdlink/internal/extio"
)

// fsFileStore implements extio.FileStore over the host filesystem, rooted
// at a single state directory (spec §1 "PCMCIA-style path construction" —
// here a plain directory tree stands in for the card).
type fsFileStore struct {
	root string
}

func newFSFileStore(root string) *fsFileStore {
	return &fsFileStore{root: root}
}

func (f *fsFileStore) PathFor(device, subdir, filename string) string {
	return filepath.Join(f.root, device, subdir, filename)
}

func (f *fsFileStore) OpenAppend(path string) (extio.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (f *fsFileStore) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *fsFileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (f *fsFileStore) Remove(path string) error {
	return os.Remove(path)
}

func (f *fsFileStore) Rename(oldPath, newPath string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

// ListOutbox returns outbox filenames in ascending order, matching spec
// §4.3 priority 7; os.ReadDir already sorts entries by name.
func (f *fsFileStore) ListOutbox(device string) ([]string, error) {
	dir := filepath.Join(f.root, device, "outbox")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// fsEEPROM persists the IMEI mirror and CIS-invalidation bytes as small
// files under root/eeprom (spec §6 "Persistent state").
type fsEEPROM struct {
	dir string
}

func newFSEEPROM(dir string) *fsEEPROM {
	return &fsEEPROM{dir: dir}
}

func (e *fsEEPROM) ReadIMEI() (string, error) {
	b, err := os.ReadFile(filepath.Join(e.dir, "imei"))
	if os.IsNotExist(err) {
		return "", nil
	}
	return string(b), err
}

func (e *fsEEPROM) WriteIMEI(imei string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.dir, "imei"), []byte(imei), 0o644)
}

func (e *fsEEPROM) WriteCISInvalidation(bytes []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.dir, "cis-invalidation.bin"), bytes, 0o644)
}

// fsRulesEngine adapts spec §1's out-of-scope rules/event engine to plain
// files under root/device/rules, enough for a purge/delete/download target
// to land somewhere observable.
type fsRulesEngine struct {
	dir string
}

func newFSRulesEngine(dir string) *fsRulesEngine {
	return &fsRulesEngine{dir: dir}
}

func (r *fsRulesEngine) PurgeRulesImage() error {
	return os.RemoveAll(filepath.Join(r.dir, "image"))
}

func (r *fsRulesEngine) DeleteRulesFile(name string) error {
	return os.Remove(filepath.Join(r.dir, name))
}

func (r *fsRulesEngine) DownloadConfig(payload []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, "config.bin"), payload, 0o644)
}
