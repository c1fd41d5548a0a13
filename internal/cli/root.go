// Package cli is the console's command line: it runs the HTTP server and
// offers the same operations (sign in, list, edit, preferences) directly
// against the content API through the shared cache and session.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/app"
	"github.com/tbourn/go-admin-console/internal/config"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
	"github.com/tbourn/go-admin-console/internal/sysutil"
)

// env is the state shared by subcommands once the root pre-run has built it.
type env struct {
	version string
	output  string
	lang    string
	verbose bool

	cfg config.Config
	app *app.App
}

// language resolves --lang, falling back to the stored preference.
func (e *env) language() language.Tag {
	if e.lang != "" && i18n.IsSupported(e.lang) {
		return i18n.Match(e.lang)
	}
	if e.app != nil {
		return e.app.Session.Language()
	}
	return i18n.Match(e.cfg.Session.DefaultLanguage)
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	e := &env{version: version}

	root := &cobra.Command{
		Use:           "console",
		Short:         "Content admin console",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			switch {
			case cmd.Name() == "serve":
				sysutil.ConfigureLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
			case e.verbose:
				sysutil.ConfigureLogger(cmd.ErrOrStderr(), "debug", true)
			default:
				sysutil.ConfigureLogger(cmd.ErrOrStderr(), "warn", true)
			}
			if err := validFormat(e.output); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			e.app = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.app == nil {
				return nil
			}
			return e.app.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&e.output, "output", "o", formatTable, "output format: table, json or yaml")
	pf.StringVar(&e.lang, "lang", "", "message language (zh-CN or en-US); defaults to the stored preference")
	pf.BoolVarP(&e.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newServeCmd(e),
		newLoginCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newLangCmd(e),
		newThemeCmd(e),
		newListCmd(e),
		newGetCmd(e),
		newCreateCmd(e),
		newUpdateCmd(e),
		newDeleteCmd(e),
		newDashboardCmd(e),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	root := NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("error:", err)
		return 1
	}
	return 0
}

// explain turns a service error into an operator-facing message in tag.
func explain(tag language.Tag, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return errors.New(i18n.T(tag, "auth.required"))
	case errors.Is(err, services.ErrForbidden):
		return errors.New(i18n.T(tag, "auth.forbidden"))
	case errors.Is(err, services.ErrNotFound):
		return errors.New(i18n.T(tag, "error.notFound"))
	case errors.Is(err, session.ErrUnsupported), errors.Is(err, services.ErrInvalidFilter):
		return err
	}

	var me *mutation.Error
	if errors.As(err, &me) {
		if me.ServerMessage != "" || me.Kind == apierr.KindValidation {
			return errors.New(me.Message())
		}
		return errors.New(i18n.T(tag, me.FallbackKey()))
	}
	if ae, ok := apierr.As(err); ok {
		switch ae.Kind {
		case apierr.KindTimeout:
			return errors.New(i18n.T(tag, "error.timeout"))
		case apierr.KindTransport:
			return errors.New(i18n.T(tag, "error.transport"))
		}
		if ae.Message != "" {
			return errors.New(ae.Message)
		}
	}
	return err
}
