// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/i18n"
	"github.com/toeirei/deckhand/internal/logging"
	"github.com/toeirei/deckhand/internal/model"
	"github.com/toeirei/deckhand/internal/orchestrator"
	"github.com/toeirei/deckhand/internal/secret"
)

// lookupTarget resolves a --target name against the store.
func lookupTarget(name string) (*model.Target, error) {
	if name == "" {
		targets, err := db.GetAllTargets()
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("%s", i18n.T("cli.error_no_targets"))
		}
		if len(targets) > 1 {
			return nil, fmt.Errorf("multiple targets configured; pass --target")
		}
		return &targets[0], nil
	}
	target, err := db.GetTargetByName(name)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf(i18n.T("cli.error_unknown_target"), name)
	}
	return target, nil
}

// runOptions builds the orchestrator options shared by the connecting
// commands from their common flag set.
func runOptions(cmd *cobra.Command) (orchestrator.Options, error) {
	keyRef, _ := cmd.Flags().GetString("identity")
	source, _ := cmd.Flags().GetString("source")

	opts := orchestrator.Options{
		LocalRoot: source,
		KeyRef:    keyRef,
		Timeout:   runTimeout(cmd),
	}

	if ask, _ := cmd.Flags().GetBool("ask-passphrase"); ask {
		pass, err := secret.PromptPassphrase("Passphrase for deploy key: ")
		if err != nil {
			return opts, err
		}
		opts.Passphrase = pass
	}
	return opts, nil
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "target name")
	cmd.Flags().StringP("identity", "i", "", "deploy key reference (env:NAME, file:path)")
	cmd.Flags().Bool("ask-passphrase", false, "prompt for the deploy key passphrase")
	cmd.Flags().Duration("timeout", 5*time.Minute, "hard limit for the remote operation")
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local tree to a target and run its post-deploy command",
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			target, err := lookupTarget(targetName)
			if err != nil {
				return err
			}

			opts, err := runOptions(cmd)
			if err != nil {
				return err
			}

			logging.Infof(i18n.T("sync.start"), target.String())

			runner := orchestrator.New(db.Active())
			result, err := runner.Deploy(*target, opts)
			if err != nil {
				return fmt.Errorf(i18n.T("sync.failed"), result.Stage, err)
			}

			if result.Status == model.StatusPartial {
				exitCode := 0
				for _, step := range result.Steps {
					if step.Name == orchestrator.StagePostDeploy {
						exitCode = step.ExitCode
						if step.Stderr != "" {
							fmt.Fprint(os.Stderr, step.Stderr)
						}
					}
				}
				return &partialError{exitCode: exitCode}
			}

			fmt.Printf(i18n.T("sync.done")+"\n", target.Name)
			return nil
		},
	}

	addConnectionFlags(cmd)
	cmd.Flags().StringP("source", "s", ".", "local directory to deploy")
	return cmd
}

func newRunCommandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-command <command>",
		Short: "Run a single command on a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			target, err := lookupTarget(targetName)
			if err != nil {
				return err
			}

			opts, err := runOptions(cmd)
			if err != nil {
				return err
			}

			runner := orchestrator.New(db.Active())
			outcome, err := runner.RunCommand(*target, args[0], opts)
			if err != nil {
				return err
			}

			if outcome.Stdout != "" {
				fmt.Print(outcome.Stdout)
			}
			if outcome.Stderr != "" {
				fmt.Fprint(os.Stderr, outcome.Stderr)
			}
			if outcome.ExitCode != 0 {
				return fmt.Errorf(i18n.T("run.exit"), outcome.ExitCode)
			}
			return nil
		},
	}

	addConnectionFlags(cmd)
	return cmd
}
