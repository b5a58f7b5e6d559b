package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if pw := os.Getenv("MEMOSYNC_PASSWORD"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required")
	}
	return line, nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password, provider string
	cmd := &cobra.Command{
		Use:     "login",
		GroupID: "auth",
		Short:   "Sign in with email and password or a federated provider",
		Example: `  memosync login --email me@example.com
  memosync login --provider github`,
		Annotations: map[string]string{annotationInteractive: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if provider != "" {
				p, err := a.bridge.SignInWithProvider(ctx, provider)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Signed in as %s\n", p.DisplayName())
				return nil
			}
			if email == "" {
				return errors.New("--email or --provider is required")
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			p, err := a.bridge.SignInWithPassword(ctx, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", p.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&provider, "provider", "", "federated provider, e.g. github")
	cmd.MarkFlagsMutuallyExclusive("email", "provider")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:         "register",
		GroupID:     "auth",
		Short:       "Create an account on the record service and sign in",
		Annotations: map[string]string{annotationInteractive: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.backend.http == nil {
				return errors.New("register needs the http backend")
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			if _, err := a.backend.http.Register(cmd.Context(), email, pw, name); err != nil {
				return err
			}
			p, err := a.bridge.SignInWithPassword(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered and signed in as %s\n", p.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		GroupID: "auth",
		Short:   "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.bridge.SignOut()
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		GroupID: "auth",
		Short:   "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := a.bridge.Current()
			if !ok {
				fmt.Fprintln(a.out, "Not signed in")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s>\nid:     %s\navatar: %s\n", p.DisplayName(), p.Email, p.ID, p.AvatarURL())
			if !a.bridge.Valid() {
				fmt.Fprintln(a.out, "session expired, run `memosync login`")
			}
			return nil
		},
	}
}
