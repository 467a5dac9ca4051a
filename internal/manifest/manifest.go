// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package manifest enumerates file trees into path → fingerprint snapshots.
// The local walker reads the filesystem directly; the remote walker runs
// over an SFTP session. Both produce the same shape so trees can be diffed.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"github.com/toeirei/deckhand/internal/errors"
)

// Entry is the fingerprint of one file: its size and the hex SHA-256 of its
// content. Content hashing keeps plans stable across clock skew and fresh
// checkouts, where modification times lie.
type Entry struct {
	Size   int64
	Digest string
}

// Manifest maps slash-separated relative paths to their fingerprints.
type Manifest map[string]Entry

// Local walks the tree rooted at root and fingerprints every regular file.
// Paths are relative to root and use forward slashes regardless of platform.
func Local(root string) (Manifest, error) {
	m := Manifest{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Sockets, devices and symlinks are not deployable content.
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entry, err := fingerprintLocal(p)
		if err != nil {
			return err
		}
		m[filepath.ToSlash(rel)] = entry
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrManifest,
			"local tree could not be enumerated",
			"check that the build output exists and is readable")
	}
	return m, nil
}

// Remote walks the tree rooted at root over SFTP and fingerprints every
// regular file. A missing root yields an empty manifest (first deploy).
func Remote(client *sftp.Client, root string) (Manifest, error) {
	m := Manifest{}
	if _, err := client.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errors.Wrap(err, errors.ErrManifest,
			"remote tree could not be enumerated",
			"check the destination path and the login identity's permissions")
	}

	walker := client.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrManifest,
				"remote tree could not be enumerated",
				"check the destination path and the login identity's permissions")
		}
		info := walker.Stat()
		if info.IsDir() || !info.Mode().IsRegular() {
			continue
		}
		rel := relativeTo(root, walker.Path())
		entry, err := fingerprintRemote(client, walker.Path(), info.Size())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrManifest,
				"remote file could not be read",
				"check the destination path and the login identity's permissions")
		}
		m[rel] = entry
	}
	return m, nil
}

func fingerprintLocal(p string) (Entry, error) {
	f, err := os.Open(p)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Size: n, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

func fingerprintRemote(client *sftp.Client, p string, size int64) (Entry, error) {
	f, err := client.Open(p)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Entry{}, err
	}
	return Entry{Size: size, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// relativeTo strips the root prefix from an SFTP walker path.
func relativeTo(root, p string) string {
	rel := strings.TrimPrefix(p, root)
	rel = strings.TrimPrefix(rel, "/")
	return path.Clean(rel)
}
