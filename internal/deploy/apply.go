// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/logging"
	"github.com/toeirei/deckhand/internal/manifest"
	"github.com/toeirei/deckhand/internal/plan"
)

// RemoteManifest enumerates the target's destination tree over the open
// SFTP session.
func (e *Executor) RemoteManifest(root string) (manifest.Manifest, error) {
	return manifest.Remote(e.sftp, root)
}

// Apply executes a sync plan against the target. The plan is already
// ordered: creates and updates run before deletes, so an interrupted run
// never leaves the remote missing both the old and the new files. The whole
// application is bounded by timeout; on expiry the connection is torn down
// and ErrTimeout is reported.
func (e *Executor) Apply(pl plan.Plan, localRoot, remoteRoot string, timeout time.Duration) error {
	fired := e.watchdog(timeout)

	for _, op := range pl {
		remotePath := path.Join(remoteRoot, op.Path)
		var err error
		switch op.Action {
		case plan.ActionDelete:
			err = e.sftp.Remove(remotePath)
		default:
			err = e.uploadFile(filepath.Join(localRoot, filepath.FromSlash(op.Path)), remotePath)
		}
		if err != nil {
			if fired() {
				return errors.Wrap(err, errors.ErrTimeout,
					fmt.Sprintf("sync aborted after timeout at %s", op.Path),
					"raise --timeout or check the connection to the target")
			}
			return errors.Wrap(err, errors.ErrTransfer,
				fmt.Sprintf("failed to %s %s", op.Action, op.Path),
				"check the destination path permissions on the target")
		}
		logging.Debugf("sync: %s %s", op.Action, op.Path)
	}

	if fired() {
		return errors.New(errors.ErrTimeout,
			"sync timed out",
			"raise --timeout or check the connection to the target")
	}
	return nil
}

// uploadFile copies one local file to the remote path, creating parent
// directories as needed. The content goes to a temporary file first and is
// renamed into place so readers never observe a half-written file.
func (e *Executor) uploadFile(localPath, remotePath string) error {
	if err := e.sftp.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", path.Dir(remotePath), err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer src.Close()

	tmpPath := fmt.Sprintf("%s.deckhand.%d", remotePath, time.Now().UnixNano())
	dst, err := e.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		// Best effort to clean up the failed upload.
		_ = e.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	dst.Close()

	if info, err := src.Stat(); err == nil {
		_ = e.sftp.Chmod(tmpPath, info.Mode().Perm())
	}

	if err := e.sftp.Rename(tmpPath, remotePath); err != nil {
		// Rename over an existing file is not allowed by some servers;
		// remove the destination and retry once.
		_ = e.sftp.Remove(remotePath)
		if err := e.sftp.Rename(tmpPath, remotePath); err != nil {
			_ = e.sftp.Remove(tmpPath)
			return fmt.Errorf("failed to move file into place: %w", err)
		}
	}

	return nil
}

// AppendAuthorizedKey installs a compiled authorized_keys line into the
// target login's ~/.ssh/authorized_keys, using the temp-file-and-rename
// method so the file is replaced atomically. The line is skipped when it is
// already present.
func (e *Executor) AppendAuthorizedKey(line string) error {
	sshDir := ".ssh"
	_ = e.sftp.Mkdir(sshDir) // Ignore error if it already exists.
	if err := e.sftp.Chmod(sshDir, 0700); err != nil {
		return fmt.Errorf("failed to chmod .ssh directory: %w", err)
	}

	finalPath := path.Join(sshDir, "authorized_keys")
	var existing []byte
	if f, err := e.sftp.Open(finalPath); err == nil {
		existing, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read remote authorized_keys: %w", err)
		}
	}

	content := string(existing)
	if containsLine(content, line) {
		return nil
	}
	if content != "" && content[len(content)-1] != '\n' {
		content += "\n"
	}
	content += line + "\n"

	tmpPath := path.Join(sshDir, fmt.Sprintf("authorized_keys.deckhand.%d", time.Now().UnixNano()))
	f, err := e.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		_ = e.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	f.Close()

	if err := e.sftp.Chmod(tmpPath, 0600); err != nil {
		_ = e.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}

	if err := e.sftp.Rename(tmpPath, finalPath); err != nil {
		_ = e.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to atomically rename authorized_keys file: %w", err)
	}

	return nil
}

func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
