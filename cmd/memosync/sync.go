package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "push",
		GroupID: "sync",
		Short:   "Upload local memos and settings",
		Long: `Upload every local memo, then the settings bundle.

Memos are written one at a time in local order. The first failure stops the
push; memos already uploaded stay uploaded and are updated in place by the
next push.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.syncer.SyncUserData(cmd.Context(), p.ID)
			if err != nil {
				return fmt.Errorf("push stopped after %d memos: %w", res.Memos, err)
			}
			fmt.Fprintf(a.out, "Pushed %d memos and settings in %s\n", res.Memos, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "pull",
		GroupID: "sync",
		Short:   "Replace local memos with the remote copy and apply remote settings",
		Long: `Download the remote state.

The local memo list is replaced by the remote one. Settings are applied block
by block: a block missing remotely keeps its local value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.syncer.RestoreUserData(cmd.Context(), p.ID)
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			fmt.Fprintf(a.out, "Pulled %d memos and %d settings\n", res.Memos, res.SettingsBlocks)
			return nil
		},
	}
}
