// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// targets.go manages the deployment target inventory and the pinned host
// keys. Privileged logins are refused unless explicitly overridden, so a
// compromised pipeline cannot quietly deploy as root.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/deploy"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/model"
	"github.com/toeirei/deckhand/internal/registry"
)

// privilegedLogins are refused by `targets add` without --allow-root.
var privilegedLogins = map[string]bool{
	"root":          true,
	"admin":         true,
	"administrator": true,
}

func newTargetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage deployment targets",
	}
	cmd.AddCommand(newTargetsAddCmd())
	cmd.AddCommand(newTargetsListCmd())
	cmd.AddCommand(newTargetsRemoveCmd())
	cmd.AddCommand(newTargetsKeysCmd())
	return cmd
}

func newTargetsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <user@host:path>",
		Short: "Add a deployment target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			target, err := parseTargetSpec(args[1])
			if err != nil {
				return err
			}
			target.Name = name

			if target.Username == "" {
				target.Username = deploy.DefaultUser(target.Hostname)
			}
			if target.Username == "" {
				return fmt.Errorf("no login user given and none found in ssh config for %s", target.Hostname)
			}

			allowRoot, _ := cmd.Flags().GetBool("allow-root")
			if privilegedLogins[strings.ToLower(target.Username)] && !allowRoot {
				return fmt.Errorf(i18n.T("targets.root_refused"), target.Username)
			}

			target.PostDeploy, _ = cmd.Flags().GetString("post-deploy")
			excludes, _ := cmd.Flags().GetStringSlice("exclude")
			target.Excludes = excludes
			target.IsActive = true

			if _, err := db.AddTarget(target); err != nil {
				return err
			}
			fmt.Printf(i18n.T("targets.added")+"\n", name, target.String())
			return nil
		},
	}

	cmd.Flags().Bool("allow-root", false, "allow a privileged login user")
	cmd.Flags().String("post-deploy", "", "command run on the target after each sync")
	cmd.Flags().StringSlice("exclude", nil, "relative paths protected from sync and delete")
	return cmd
}

// parseTargetSpec splits "user@host:path" into its parts. The user is
// optional; the path is not.
func parseTargetSpec(spec string) (model.Target, error) {
	var t model.Target
	rest := spec
	if user, hostPart, ok := strings.Cut(rest, "@"); ok {
		t.Username = user
		rest = hostPart
	}
	host, path, ok := strings.Cut(rest, ":")
	if !ok || host == "" || path == "" {
		return t, fmt.Errorf("invalid target spec '%s'; expected [user@]host:path", spec)
	}
	t.Hostname = host
	t.Path = path
	return t, nil
}

func newTargetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := db.GetAllTargets()
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Println(i18n.T("cli.error_no_targets"))
				return nil
			}
			for _, t := range targets {
				line := fmt.Sprintf("%-20s %s", t.Name, t.String())
				if t.PostDeploy != "" {
					line += fmt.Sprintf("  (post-deploy: %s)", t.PostDeploy)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newTargetsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a deployment target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RemoveTarget(args[0]); err != nil {
				return err
			}
			fmt.Printf(i18n.T("targets.removed")+"\n", args[0])
			return nil
		},
	}
}

func newTargetsKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <name>",
		Short: "List the active deploy keys registered for a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := lookupTarget(args[0])
			if err != nil {
				return err
			}
			entries, err := registry.New(db.Active()).List(target)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Println(e.String())
			}
			return nil
		},
	}
}

func newTrustHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust-host",
		Short: "Fetch and pin a target's host key",
		Long: `trust-host connects to the target, shows the host key fingerprint and,
after confirmation, pins the key. Deployments refuse to talk to hosts
whose key is not pinned or no longer matches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			target, err := lookupTarget(targetName)
			if err != nil {
				return err
			}

			hostKey, err := deploy.FetchHostKey(target.Hostname, runTimeout(cmd))
			if err != nil {
				return err
			}

			fingerprint := ssh.FingerprintSHA256(hostKey)
			fmt.Printf(i18n.T("trust.fingerprint")+"\n", target.Hostname, fingerprint, hostKey.Type())

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				fmt.Print(i18n.T("trust.prompt"))
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Println(i18n.T("trust.aborted"))
					return nil
				}
			}

			host := target.Hostname
			if h, _, ok := strings.Cut(host, ":"); ok {
				host = h
			}
			keyLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(hostKey)))
			if err := db.AddKnownHostKey(host, keyLine); err != nil {
				return err
			}
			fmt.Printf(i18n.T("trust.added")+"\n", host)
			return nil
		},
	}

	cmd.Flags().String("target", "", "target name")
	cmd.Flags().BoolP("yes", "y", false, "pin without the interactive confirmation")
	cmd.Flags().Duration("timeout", 0, "connection timeout")
	return cmd
}
