// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package policy compiles declarative key restriction policies into
// authorized_keys entry text. The compiler is a pure function and is the
// injection-prevention boundary: a forced command is validated so it can
// never smuggle an additional authorized_keys entry into the output.
package policy

import (
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/model"
)

// Compile renders a restriction policy, a public key and a comment into a
// single authorized_keys line: `[options,]key-type base64-key comment`.
// Options are comma-separated with no spaces, in a fixed order, so the same
// inputs always produce the same bytes.
func Compile(pol model.RestrictionPolicy, publicKey, comment string) (string, error) {
	if err := validate(pol, comment); err != nil {
		return "", err
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrPolicy,
			"public key is not a valid authorized_keys entry",
			"expected 'key-type base64-key [comment]'")
	}
	// Canonical "key-type base64-key" form, independent of the input's spacing.
	keyText := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))

	var b strings.Builder
	if opts := options(pol); len(opts) > 0 {
		b.WriteString(strings.Join(opts, ","))
		b.WriteByte(' ')
	}
	b.WriteString(keyText)
	if comment != "" {
		b.WriteByte(' ')
		b.WriteString(comment)
	}

	return b.String(), nil
}

// options returns the option tokens for the policy in their fixed order:
// forced command first, then the forwarding/pty/X11 restrictions.
func options(pol model.RestrictionPolicy) []string {
	var opts []string
	if pol.ForcedCommand != "" {
		opts = append(opts, `command="`+escapeForcedCommand(pol.ForcedCommand)+`"`)
	}
	if pol.NoPortForwarding {
		opts = append(opts, "no-port-forwarding")
	}
	if pol.NoAgentForwarding {
		opts = append(opts, "no-agent-forwarding")
	}
	if pol.NoPTY {
		opts = append(opts, "no-pty")
	}
	if pol.NoX11Forwarding {
		opts = append(opts, "no-X11-forwarding")
	}
	return opts
}

// validate rejects policies whose text could terminate the authorized_keys
// line early. A newline inside the forced command (or the comment) would
// start a second, unrestricted entry on the remote host.
func validate(pol model.RestrictionPolicy, comment string) error {
	if strings.ContainsAny(pol.ForcedCommand, "\n\r\x00") {
		return errors.New(errors.ErrPolicy,
			"forced command contains a line break or NUL",
			"a forced command must be a single line of text")
	}
	if strings.ContainsAny(comment, "\n\r\x00") {
		return errors.New(errors.ErrPolicy,
			"key comment contains a line break or NUL",
			"comments must be a single line of text")
	}
	return nil
}

// escapeForcedCommand escapes the characters that are significant inside a
// double-quoted authorized_keys option value.
func escapeForcedCommand(cmd string) string {
	cmd = strings.ReplaceAll(cmd, `\`, `\\`)
	cmd = strings.ReplaceAll(cmd, `"`, `\"`)
	return cmd
}
