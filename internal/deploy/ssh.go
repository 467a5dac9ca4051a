// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package deploy opens authenticated sessions to deployment targets and
// applies sync plans or runs single constrained commands over them. Host
// identity is verified against the pinned known_hosts store before any
// credential is offered; there is no trust-on-first-use.
package deploy

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/model"
)

// Executor handles the connection to one remote target for the duration of
// a run.
type Executor struct {
	target model.Target
	client *ssh.Client
	sftp   *sftp.Client
}

// hostKeyCallback returns the pinned-key verification callback for a target.
// The callback runs before authentication, so an untrusted host never sees
// credential material.
func hostKeyCallback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		// The hostname passed to the callback can include the port; strip it
		// so we look up the same name the operator pinned.
		host, _, err := net.SplitHostPort(hostname)
		if err != nil {
			host = hostname
		}

		presentedKey := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))

		knownKey, err := db.GetKnownHostKey(host)
		if err != nil {
			return fmt.Errorf("failed to query known_hosts store: %w", err)
		}

		if knownKey == "" {
			return errors.New(errors.ErrUntrustedHost,
				fmt.Sprintf(i18n.T("deploy.error_untrusted_host"), host),
				"deckhand trust-host --target <name>")
		}

		if strings.TrimSpace(knownKey) != presentedKey {
			return errors.New(errors.ErrUntrustedHost,
				fmt.Sprintf(i18n.T("deploy.error_host_mismatch"), host),
				"if the host was legitimately reinstalled, re-run 'deckhand trust-host'")
		}

		return nil
	}
}

// NewExecutor opens an SSH connection to the target and starts an SFTP
// subsystem on it. privateKey is the deploy key fetched from the secret
// store; when it is empty, a running SSH agent is used as fallback.
func NewExecutor(target model.Target, privateKey, passphrase []byte, timeout time.Duration) (*Executor, error) {
	addr := resolveAddr(target.Hostname)
	callback := hostKeyCallback()

	var finalErr error
	if len(privateKey) > 0 {
		signer, err := parseSigner(privateKey, passphrase)
		if err != nil {
			return nil, err
		}

		config := &ssh.ClientConfig{
			User:            target.Username,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: callback,
			Timeout:         timeout,
		}

		client, err := ssh.Dial("tcp", addr, config)
		if err == nil {
			return newExecutorForClient(target, client)
		}
		// Host verification failures must surface as-is; they are the
		// fail-closed path and an agent retry would not change them.
		if errors.HasCode(err, errors.ErrUntrustedHost) {
			return nil, err
		}
		if !strings.Contains(err.Error(), "unable to authenticate") {
			return nil, errors.Wrap(err, errors.ErrTransfer,
				fmt.Sprintf(i18n.T("deploy.error_connection_failed"), target.Hostname, err),
				"check the address and that the host is reachable")
		}
		// Auth failure with the deploy key; remember it and try the agent.
		finalErr = err
	}

	agentClient := getSSHAgent()
	if agentClient == nil {
		if finalErr != nil {
			return nil, errors.Wrap(finalErr, errors.ErrCredential,
				"deploy key authentication failed and no SSH agent is available",
				"check that the registered key matches the remote authorized_keys")
		}
		return nil, errors.New(errors.ErrCredential,
			"no authentication method available",
			"provide a deploy key with --identity or start an SSH agent")
	}

	config := &ssh.ClientConfig{
		User:            target.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: callback,
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if errors.HasCode(err, errors.ErrUntrustedHost) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCredential,
			"connection with ssh agent failed",
			"check that the agent holds a key authorized on the target")
	}

	return newExecutorForClient(target, client)
}

func newExecutorForClient(target model.Target, client *ssh.Client) (*Executor, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrTransfer,
			"failed to start sftp subsystem",
			"the remote sshd must have the sftp subsystem enabled")
	}
	return &Executor{target: target, client: client, sftp: sftpClient}, nil
}

// parseSigner parses the private key, retrying with the passphrase when the
// key is encrypted and one was supplied.
func parseSigner(privateKey, passphrase []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err == nil {
		return signer, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok && len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, passphrase)
		if err == nil {
			return signer, nil
		}
	}
	return nil, errors.Wrap(err, errors.ErrCredential,
		"unable to parse the deploy key",
		"the key must be an OpenSSH private key; encrypted keys need --ask-passphrase")
}

// Close closes the underlying SSH and SFTP clients.
func (e *Executor) Close() {
	if e.sftp != nil {
		e.sftp.Close()
	}
	if e.client != nil {
		e.client.Close()
	}
}

// watchdog arms a hard-cancel timer that tears down the connection when the
// timeout elapses. The returned func reports whether the timer fired.
func (e *Executor) watchdog(timeout time.Duration) func() bool {
	if timeout <= 0 {
		return func() bool { return false }
	}
	timer := time.AfterFunc(timeout, func() {
		// Closing the client aborts any in-flight session or transfer.
		e.client.Close()
	})
	return func() bool { return !timer.Stop() }
}

// FetchHostKey connects to a host just to retrieve its public key, for the
// trust-host workflow. No authentication is attempted.
func FetchHostKey(hostname string, timeout time.Duration) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	const sentinel = "deckhand: host key retrieved"
	config := &ssh.ClientConfig{
		User: "deckhand-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			// Returning an error stops the handshake before authentication.
			return fmt.Errorf("%s", sentinel)
		},
		Timeout: timeout,
	}

	addr := resolveAddr(hostname)
	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), sentinel) {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", hostname, err)
	}

	return nil, fmt.Errorf("handshake succeeded unexpectedly, could not retrieve key")
}
