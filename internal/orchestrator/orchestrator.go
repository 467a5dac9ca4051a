// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package orchestrator drives a deployment run end to end: load the deploy
// credential, connect, compute and apply the sync plan, run the post-deploy
// command and persist the run record. Runs against the same target are
// serialized; runs against different targets may proceed concurrently.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/deploy"
	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/logging"
	"github.com/toeirei/deckhand/internal/manifest"
	"github.com/toeirei/deckhand/internal/model"
	"github.com/toeirei/deckhand/internal/plan"
	"github.com/toeirei/deckhand/internal/secret"
)

// Stage names recorded on a failed run.
const (
	StageCredential = "credential"
	StageSync       = "sync"
	StagePostDeploy = "post-deploy"
)

// Transport is the remote side of a deployment run. The production
// implementation is deploy.Executor.
type Transport interface {
	RemoteManifest(root string) (manifest.Manifest, error)
	Apply(pl plan.Plan, localRoot, remoteRoot string, timeout time.Duration) error
	Run(command string, timeout time.Duration) (model.CommandOutcome, error)
	Close()
}

// Dialer opens a Transport to a target. Split out so tests can substitute a
// stub without a live sshd.
type Dialer func(target model.Target, privateKey, passphrase []byte, timeout time.Duration) (Transport, error)

// Options carries the per-run inputs that are not part of the target record.
type Options struct {
	LocalRoot  string
	KeyRef     string // secret reference ("env:NAME", "file:path"); empty means agent only
	Passphrase []byte
	Timeout    time.Duration
}

// Runner owns the per-target locks and the persistence hook for run records.
type Runner struct {
	store db.Store
	dial  Dialer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Runner wired to the real SSH transport.
func New(store db.Store) *Runner {
	return &Runner{
		store: store,
		dial: func(target model.Target, privateKey, passphrase []byte, timeout time.Duration) (Transport, error) {
			return deploy.NewExecutor(target, privateKey, passphrase, timeout)
		},
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing runs against one target.
func (r *Runner) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.locks[name]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.locks[name] = m
	return m
}

// Deploy runs the full pipeline against one target and returns the run
// record. The record is always persisted, whatever the outcome. A non-zero
// post-deploy exit yields StatusPartial with a nil error; the files are in
// place, only the follow-up command failed.
func (r *Runner) Deploy(target model.Target, opts Options) (*model.DeploymentResult, error) {
	lock := r.lockFor(target.Name)
	lock.Lock()
	defer lock.Unlock()

	result := &model.DeploymentResult{
		ID:        uuid.NewString(),
		Target:    target.String(),
		Status:    model.StatusFailed,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		result.FinishedAt = time.Now().UTC()
		if err := r.store.AddDeploymentResult(*result); err != nil {
			logging.Warnf("failed to persist run record %s: %v", result.ID, err)
		}
	}()

	// Stage: credential. The key material lives only for the duration of the
	// dial and is zeroed on every exit path.
	privateKey, err := r.loadKey(opts.KeyRef)
	if err != nil {
		result.Stage = StageCredential
		result.Steps = append(result.Steps, model.StepResult{Name: StageCredential, Error: err.Error()})
		return result, err
	}
	defer secret.Wipe(privateKey)
	defer secret.Wipe(opts.Passphrase)

	transport, err := r.dial(target, privateKey, opts.Passphrase, opts.Timeout)
	if err != nil {
		result.Stage = StageCredential
		result.Steps = append(result.Steps, model.StepResult{Name: StageCredential, Error: err.Error()})
		return result, err
	}
	defer transport.Close()
	secret.Wipe(privateKey)
	result.Steps = append(result.Steps, model.StepResult{Name: StageCredential})

	// Stage: sync. Identical trees produce an empty plan and no remote
	// writes, so re-running a converged deployment is a no-op.
	local, err := manifest.Local(opts.LocalRoot)
	if err != nil {
		result.Stage = StageSync
		result.Steps = append(result.Steps, model.StepResult{Name: StageSync, Error: err.Error()})
		return result, err
	}
	remote, err := transport.RemoteManifest(target.Path)
	if err != nil {
		result.Stage = StageSync
		result.Steps = append(result.Steps, model.StepResult{Name: StageSync, Error: err.Error()})
		return result, err
	}

	pl := plan.Build(local, remote, target.Excludes)
	if pl.Empty() {
		logging.Infof("%s", i18n.T("sync.plan_empty"))
	} else {
		changes, deletes := pl.Counts()
		logging.Infof("plan for %s: %d changes, %d deletes", target.Name, changes, deletes)
	}

	if !pl.Empty() {
		if err := transport.Apply(pl, opts.LocalRoot, target.Path, opts.Timeout); err != nil {
			result.Stage = StageSync
			result.Steps = append(result.Steps, model.StepResult{Name: StageSync, Error: err.Error()})
			return result, err
		}
	}
	result.Steps = append(result.Steps, model.StepResult{Name: StageSync})

	// Stage: post-deploy. Optional, one command, non-zero exit does not roll
	// anything back.
	if target.PostDeploy != "" {
		outcome, err := transport.Run(target.PostDeploy, opts.Timeout)
		step := model.StepResult{
			Name:     StagePostDeploy,
			ExitCode: outcome.ExitCode,
			Stdout:   outcome.Stdout,
			Stderr:   outcome.Stderr,
		}
		if err != nil {
			step.Error = err.Error()
			result.Stage = StagePostDeploy
			result.Steps = append(result.Steps, step)
			return result, err
		}
		result.Steps = append(result.Steps, step)
		if outcome.ExitCode != 0 {
			result.Status = model.StatusPartial
			return result, nil
		}
	}

	result.Status = model.StatusSuccess
	return result, nil
}

// RunCommand executes one ad-hoc command on the target without touching any
// files. The outcome carries the remote exit code; a non-zero exit is not an
// error.
func (r *Runner) RunCommand(target model.Target, command string, opts Options) (model.CommandOutcome, error) {
	lock := r.lockFor(target.Name)
	lock.Lock()
	defer lock.Unlock()

	privateKey, err := r.loadKey(opts.KeyRef)
	if err != nil {
		return model.CommandOutcome{ExitCode: -1}, err
	}
	defer secret.Wipe(privateKey)
	defer secret.Wipe(opts.Passphrase)

	transport, err := r.dial(target, privateKey, opts.Passphrase, opts.Timeout)
	if err != nil {
		return model.CommandOutcome{ExitCode: -1}, err
	}
	defer transport.Close()
	secret.Wipe(privateKey)

	return transport.Run(command, opts.Timeout)
}

// InstallKey connects to the target and appends a compiled authorized_keys
// line. Only the real SSH transport supports this; it needs the SFTP session.
func (r *Runner) InstallKey(target model.Target, line string, opts Options) error {
	lock := r.lockFor(target.Name)
	lock.Lock()
	defer lock.Unlock()

	privateKey, err := r.loadKey(opts.KeyRef)
	if err != nil {
		return err
	}
	defer secret.Wipe(privateKey)
	defer secret.Wipe(opts.Passphrase)

	transport, err := r.dial(target, privateKey, opts.Passphrase, opts.Timeout)
	if err != nil {
		return err
	}
	defer transport.Close()
	secret.Wipe(privateKey)

	installer, ok := transport.(interface{ AppendAuthorizedKey(string) error })
	if !ok {
		return fmt.Errorf("transport does not support key installation")
	}
	if err := installer.AppendAuthorizedKey(line); err != nil {
		return errors.Wrap(err, errors.ErrTransfer,
			fmt.Sprintf("failed to install key on %s", target.Name),
			"check write access to ~/.ssh on the target")
	}
	return nil
}

// loadKey resolves the deploy key from the secret store. An empty reference
// means no stored key; the transport will fall back to a running agent.
func (r *Runner) loadKey(ref string) ([]byte, error) {
	if ref == "" {
		return nil, nil
	}
	key, err := secret.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return key, nil
}
