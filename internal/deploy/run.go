// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/model"
)

// outputExcerptLimit bounds how much captured output is kept per stream in
// the run record. Full output still reaches the operator's terminal via the
// CLI; the audit log only keeps an excerpt.
const outputExcerptLimit = 8 * 1024

// Run opens one session, executes exactly one command and captures its exit
// status and output. The timeout is a hard cancel: when it elapses the
// session is closed and ErrTimeout is reported. A non-zero exit is not an
// error here; the caller decides what it means.
func (e *Executor) Run(command string, timeout time.Duration) (model.CommandOutcome, error) {
	outcome := model.CommandOutcome{ExitCode: -1}

	session, err := e.client.NewSession()
	if err != nil {
		return outcome, errors.Wrap(err, errors.ErrExec,
			"failed to open a session on the target",
			"the connection may have been closed; re-run the deployment")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	var fired func() bool
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { session.Close() })
		fired = func() bool { return !timer.Stop() }
	} else {
		fired = func() bool { return false }
	}

	err = session.Run(command)
	outcome.Stdout = excerpt(stdout.String())
	outcome.Stderr = excerpt(stderr.String())

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			// The command ran; it just exited non-zero.
			outcome.ExitCode = exitErr.ExitStatus()
			return outcome, nil
		}
		if fired() {
			return outcome, errors.New(errors.ErrTimeout,
				fmt.Sprintf("command did not finish within %s", timeout),
				"raise --timeout or investigate the command on the target")
		}
		return outcome, errors.Wrap(err, errors.ErrExec,
			fmt.Sprintf("failed to execute command: %s", command),
			"check that the command exists on the target")
	}

	outcome.ExitCode = 0
	return outcome, nil
}

func excerpt(s string) string {
	if len(s) <= outputExcerptLimit {
		return s
	}
	return s[:outputExcerptLimit] + "\n[truncated]"
}
