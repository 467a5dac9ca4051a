// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package secret is the boundary to the external secret store. Deckhand
// never owns credentials: it fetches key material for the duration of one
// run and wipes it afterwards. Nothing in this package writes secrets to
// disk or to the log.
package secret

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/toeirei/deckhand/internal/errors"
)

// Store reads named secrets from an external store.
type Store interface {
	Get(name string) ([]byte, error)
}

// Resolve fetches key material for a credential reference of the form
// "env:VAR_NAME" or "file:/path/to/key". A bare value is treated as a file
// path, which matches how CI providers materialize deploy keys.
func Resolve(ref string) ([]byte, error) {
	scheme, name, ok := strings.Cut(ref, ":")
	if !ok {
		scheme, name = "file", ref
	}
	var s Store
	switch scheme {
	case "env":
		s = EnvStore{}
	case "file":
		s = FileStore{}
	default:
		return nil, errors.New(errors.ErrCredential,
			fmt.Sprintf("unknown credential scheme '%s'", scheme),
			"use 'env:VAR_NAME' or 'file:/path/to/key'")
	}
	return s.Get(name)
}

// EnvStore reads secrets from environment variables, the way CI providers
// inject them into a job.
type EnvStore struct{}

// Get returns the value of the named environment variable.
func (EnvStore) Get(name string) ([]byte, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil, errors.New(errors.ErrCredential,
			fmt.Sprintf("environment variable '%s' is not set", name),
			"check the secret configuration of your CI job")
	}
	return []byte(v), nil
}

// FileStore reads secrets from files on disk.
type FileStore struct{}

// Get returns the content of the named file.
func (FileStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCredential,
			fmt.Sprintf("could not read key file '%s'", name),
			"check the path and its permissions")
	}
	return data, nil
}

// Wipe zeroes a secret buffer. Callers defer this so the key material is
// cleared on every exit path, including failures.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// PromptPassphrase reads a passphrase from the terminal without echo. It is
// only used interactively; CI runs must use unencrypted deploy keys or an
// agent.
func PromptPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCredential,
			"could not read passphrase",
			"run from an interactive terminal or use an unencrypted key")
	}
	return pass, nil
}
