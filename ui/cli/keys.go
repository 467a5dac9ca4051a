// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// keys.go holds the registry-facing commands: rotate-key registers a new
// deploy key and revokes the old one, install-key pushes a compiled
// authorized_keys entry onto a target.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/model"
	"github.com/toeirei/deckhand/internal/orchestrator"
	"github.com/toeirei/deckhand/internal/registry"
)

// policyFromFlags assembles the restriction policy for a new registry entry.
func policyFromFlags(cmd *cobra.Command) model.RestrictionPolicy {
	forced, _ := cmd.Flags().GetString("forced-command")
	restrict, _ := cmd.Flags().GetBool("restrict")
	pol := model.RestrictionPolicy{ForcedCommand: forced}
	if restrict {
		pol.NoPortForwarding = true
		pol.NoAgentForwarding = true
		pol.NoPTY = true
		pol.NoX11Forwarding = true
	}
	return pol
}

// readPublicKey loads the new public key from --pubkey-file or stdin.
func readPublicKey(cmd *cobra.Command) (string, error) {
	if file, _ := cmd.Flags().GetString("pubkey-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("could not read public key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("no public key given; pass --pubkey-file")
}

func newRotateKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Register a new deploy key and revoke the old one",
		Long: `rotate-key appends a new active registry entry under a fresh label and
deactivates the old label. Both keys remain authorized on the remote host
until the next install-key run replaces the authorized_keys set; rotation
is therefore safe to run while deployments are in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			target, err := lookupTarget(targetName)
			if err != nil {
				return err
			}

			newLabel, _ := cmd.Flags().GetString("label")
			oldLabel, _ := cmd.Flags().GetString("revoke")
			if newLabel == "" {
				return fmt.Errorf("a --label for the new key is required")
			}

			publicKey, err := readPublicKey(cmd)
			if err != nil {
				return err
			}

			reg := registry.New(db.Active())
			entry, err := reg.Register(target, newLabel, publicKey, policyFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Printf(i18n.T("rotate.registered")+"\n", entry.Label, target.Name)

			if oldLabel != "" {
				if err := reg.Revoke(target, oldLabel); err != nil {
					return err
				}
				fmt.Printf(i18n.T("rotate.revoked")+"\n", oldLabel, target.Name)
				fmt.Println(i18n.T("rotate.overlap"))
			}
			return nil
		},
	}

	cmd.Flags().String("target", "", "target name")
	cmd.Flags().String("label", "", "label for the new key")
	cmd.Flags().String("revoke", "", "label of the old key to revoke")
	cmd.Flags().String("pubkey-file", "", "path to the new OpenSSH public key")
	cmd.Flags().String("forced-command", "", "forced command compiled into the entry")
	cmd.Flags().Bool("restrict", true, "apply the full no-forwarding/no-pty restriction set")
	return cmd
}

func newInstallKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install-key <label>",
		Short: "Install a registered key's authorized_keys entry on its target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			target, err := lookupTarget(targetName)
			if err != nil {
				return err
			}

			label := args[0]
			entry, err := db.Active().GetActiveRegistryEntry(target.ID, label)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no active key '%s' registered for target %s", label, target.Name)
			}

			reg := registry.New(db.Active())
			line, err := reg.AuthorizedLine(*entry)
			if err != nil {
				return err
			}

			if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
				fmt.Println(line)
				return nil
			}

			opts, err := runOptions(cmd)
			if err != nil {
				return err
			}

			runner := orchestrator.New(db.Active())
			if err := runner.InstallKey(*target, line, opts); err != nil {
				return err
			}
			fmt.Printf(i18n.T("install.appended")+"\n", label, target.Name)
			return nil
		},
	}

	addConnectionFlags(cmd)
	cmd.Flags().Bool("print", false, "print the compiled entry instead of installing it")
	return cmd
}
