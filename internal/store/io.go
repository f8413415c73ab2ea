package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"veilchat/internal/domain"
)

// readJSON loads path into v. A missing file leaves v untouched so callers
// can start from an empty map.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return wrapStorage("read "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return wrapStorage("decode "+path, err)
	}
	return nil
}

func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return wrapStorage("encode "+path, err)
	}
	return writeFileAtomic(path, b, mode)
}

// writeFileAtomic writes via a temp file and rename so a crash never leaves
// a half-written record behind.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return wrapStorage("write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return wrapStorage("commit "+path, err)
	}
	return nil
}

// readFile is os.ReadFile with storage wrapping; missing files are errors.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapStorage("read "+path, err)
	}
	return data, nil
}

func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorage, err))
}
