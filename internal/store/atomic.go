package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/bytedance/sonic/encoder"
)

// StorageError wraps unrecoverable filesystem failures with the path that
// caused them.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// writeJSONAtomic pretty-prints v and writes it to path via a temp file and
// rename. The temp file name carries a random nonce so concurrent writers to
// different paths never collide. No fsync: single-node, best-effort
// durability is the contract.
func writeJSONAtomic(path string, v any) error {
	data, err := encoder.EncodeIndented(v, "", "  ", 0)
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}

	nonce := make([]byte, 6)
	if _, err := rand.Read(nonce); err != nil {
		return &StorageError{Op: "nonce", Path: path, Err: err}
	}
	tmp := fmt.Sprintf("%s.tmp.%s", path, hex.EncodeToString(nonce))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
