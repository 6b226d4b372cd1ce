package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l1jgo/behavior/internal/behavior"
	"gopkg.in/yaml.v3"
)

// EncodeSnapshot renders an owner snapshot as YAML.
func EncodeSnapshot(s behavior.Snapshot) ([]byte, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.Owner, err)
	}
	return raw, nil
}

func DecodeSnapshot(raw []byte) (behavior.Snapshot, error) {
	var s behavior.Snapshot
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return behavior.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

func SaveSnapshotFile(path string, s behavior.Snapshot) error {
	raw, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func LoadSnapshotFile(path string) (behavior.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return behavior.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(raw)
}

// SnapshotPath maps an object name onto a file under dir.
func SnapshotPath(dir, object string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, object)
	if clean == "" {
		clean = "_"
	}
	return filepath.Join(dir, clean+".yaml")
}

// SaveSnapshots writes one file per owner under dir. Owners sharing a name
// overwrite each other; the last one wins.
func SaveSnapshots(dir string, owners []*behavior.Owner) (int, error) {
	n := 0
	for _, o := range owners {
		if err := SaveSnapshotFile(SnapshotPath(dir, o.Name()), o.Snapshot()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
