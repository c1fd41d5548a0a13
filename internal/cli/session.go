package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/sysutil"
)

var identityView = view{columns: []string{"user_id", "name", "email", "role"}}

func newLoginCmd(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the content API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password = sysutil.FirstNonEmpty(password, os.Getenv("CONSOLE_PASSWORD"))
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			id, err := e.app.Auth.Login(cmd.Context(), domain.LoginRequest{Email: email, Password: password})
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), id, identityView)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password (or CONSOLE_PASSWORD, or prompt)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.app.Auth.Logout(cmd.Context()); err != nil {
				return explain(e.language(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(e.language(), "auth.loggedOut"))
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				id  domain.Identity
				err error
			)
			if offline {
				id, err = e.app.Auth.Authorize(false)
			} else {
				id, err = e.app.Auth.Me(cmd.Context())
			}
			if err != nil {
				return explain(e.language(), err)
			}
			return render(cmd.OutOrStdout(), e.output, e.language(), id, identityView)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "print the stored identity without asking the API")
	return cmd
}

func newLangCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "lang [zh-CN|en-US]",
		Short: "Show or set the console language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := e.app.Session.SetLanguage(cmd.Context(), args[0]); err != nil {
					return explain(e.language(), err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.app.Session.Language().String())
			return nil
		},
	}
}

func newThemeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark]",
		Short: "Show or set the console theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := e.app.Session.SetTheme(cmd.Context(), args[0]); err != nil {
					return explain(e.language(), err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.app.Session.Theme())
			return nil
		},
	}
}
