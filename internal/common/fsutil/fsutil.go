package fsutil

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// maxUniqueAttempts bounds the suffix retry loop. A collision needs a
// same-second run with a matching 4-digit draw, so hitting the cap in
// practice means the filesystem is lying to us.
const maxUniqueAttempts = 10000

// UniqueDir derives a directory path that does not exist yet by appending
// a timestamp plus a 4-digit random suffix to base, re-checking until an
// unused name is found. The path is not reserved; whatever writes the
// artifact creates it.
func UniqueDir(base string) (string, error) {
	parent := filepath.Dir(base)
	name := filepath.Base(base)
	for i := 0; i < maxUniqueAttempts; i++ {
		suffix := fmt.Sprintf("%s_%04d", time.Now().Format("20060102_150405"), 1000+rand.Intn(9000))
		candidate := filepath.Join(parent, name+"_"+suffix)
		if !PathExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no unused path found for %s after %d attempts", base, maxUniqueAttempts)
}

// DirSize returns the total size in bytes of all regular files under path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
