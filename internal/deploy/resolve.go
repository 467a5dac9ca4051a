// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"net"

	"github.com/kevinburke/ssh_config"
)

// resolveAddr turns a target hostname into a dialable host:port. An explicit
// port wins; otherwise the user's ~/.ssh/config may supply HostName and Port
// for the alias, with port 22 as the final default.
func resolveAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	hostname := ssh_config.Get(host, "HostName")
	if hostname == "" {
		hostname = host
	}
	port := ssh_config.Get(host, "Port")
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(hostname, port)
}

// DefaultUser returns the User from ~/.ssh/config for the given host alias,
// or "" when none is configured. Used when adding targets without an
// explicit login identity.
func DefaultUser(host string) string {
	return ssh_config.Get(host, "User")
}
