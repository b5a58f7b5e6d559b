package main

import (
	"fmt"
	"strings"

	"memosync/internal/local"
	"memosync/internal/memo"

	"github.com/spf13/cobra"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		GroupID: "local",
		Short:   "Show or change settings on this device",
	}
	cmd.AddCommand(newSettingsShowCmd(a), newSettingsSetCmd(a))
	return cmd
}

func newSettingsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every settings block",
		RunE: func(cmd *cobra.Command, args []string) error {
			present, err := local.LoadSettings(cmd.Context(), a.state)
			if err != nil {
				return err
			}
			for _, b := range memo.Blocks {
				v, ok := present[b.LocalKey]
				suffix := ""
				if !ok {
					v, suffix = b.Default, "  (default)"
				}
				fmt.Fprintf(a.out, "%s = %s%s\n", b.LocalKey, v, suffix)
			}
			return nil
		},
	}
}

func newSettingsSetCmd(a *app) *cobra.Command {
	keys := make([]string, 0, len(memo.Blocks))
	for _, b := range memo.Blocks {
		keys = append(keys, b.LocalKey)
	}
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set one settings block",
		Long:      "Set one settings block. Keys: " + strings.Join(keys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, ok := memo.BlockByKey(args[0])
			if !ok {
				return fmt.Errorf("unknown settings key %q", args[0])
			}
			v := args[1]
			if b.Kind == memo.KindBool {
				flag, ok := memo.CoerceBool(v)
				if !ok {
					return fmt.Errorf("%s must be true or false", b.LocalKey)
				}
				v = fmt.Sprint(flag)
			}
			if err := b.Validate(v); err != nil {
				return err
			}
			return a.state.Set(cmd.Context(), b.LocalKey, v)
		},
	}
}
