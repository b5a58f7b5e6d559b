package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"memosync/internal/local"
	"memosync/internal/memo"
	"memosync/internal/remote"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memo",
		GroupID: "local",
		Short:   "Manage memos on this device",
	}
	cmd.AddCommand(newMemoAddCmd(a), newMemoListCmd(a), newMemoRmCmd(a))
	return cmd
}

func newMemoAddCmd(a *app) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a memo; #hashtags become tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return errors.New("content required")
			}
			memos, err := local.LoadMemos(ctx, a.state)
			if err != nil {
				return err
			}
			m := memo.New(content, time.Now())
			m.Tags = memo.MergeTags(m.Tags, tags...)
			memos = append([]memo.Memo{m}, memos...)
			if err := local.SaveMemos(ctx, a.state, memos); err != nil {
				return err
			}
			fmt.Fprintln(a.out, m.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "extra tag (repeatable)")
	return cmd
}

func newMemoListCmd(a *app) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local memos",
		RunE: func(cmd *cobra.Command, args []string) error {
			memos, err := local.LoadMemos(cmd.Context(), a.state)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTAGS\tCONTENT")
			for _, m := range memos {
				if tag != "" && !hasTag(m, tag) {
					continue
				}
				created := time.UnixMilli(m.Created()).Format("2006-01-02 15:04")
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, created, strings.Join(m.Tags, ","), firstLine(m.Content, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only memos with this tag")
	return cmd
}

func newMemoRmCmd(a *app) *cobra.Command {
	var localOnly bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memo here and, when signed in, remotely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			memos, err := local.LoadMemos(ctx, a.state)
			if err != nil {
				return err
			}
			kept := memos[:0]
			for _, m := range memos {
				if m.ID != id {
					kept = append(kept, m)
				}
			}
			if len(kept) == len(memos) {
				return fmt.Errorf("no local memo %s", id)
			}
			if err := local.SaveMemos(ctx, a.state, kept); err != nil {
				return err
			}

			if localOnly {
				return nil
			}
			if _, err := a.principal(ctx); err != nil {
				a.logger.Info("not signed in, deleted locally only", zap.Error(err))
				fmt.Fprintln(a.out, "Deleted locally")
				return nil
			}
			err = a.repo.DeleteMemo(ctx, id)
			switch {
			case remote.IsNotFound(err):
				fmt.Fprintln(a.out, "Deleted locally (never pushed)")
			case err != nil:
				return fmt.Errorf("deleted locally, remote delete failed: %w", err)
			default:
				fmt.Fprintln(a.out, "Deleted locally and remotely")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local", false, "do not delete the remote copy")
	return cmd
}

func hasTag(m memo.Memo, tag string) bool {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
