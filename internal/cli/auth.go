package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(app *App) *cobra.Command {
	var (
		login        string
		passwordFile string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session for this site",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			login = strings.TrimSpace(login)
			if login == "" {
				return writeErr(cmd, errors.New("missing --login"))
			}
			password, err := readPassword(cmd, passwordFile)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.ctrl.Login(ctxOf(cmd), login, password); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"site":   e.opts.Site,
				"userId": e.ctrl.Auth().UserID,
			}})
		},
	}

	cmd.Flags().StringVar(&login, "login", envOr("BZBOARD_LOGIN", ""), "Login name (usually an email address)")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "Read the password from this file instead of prompting")
	return cmd
}

// readPassword reads from file, a terminal prompt, or the first line of stdin.
func readPassword(cmd *cobra.Command, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	if in, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session for this site",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.ctrl.SignOut(ctxOf(cmd)); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"site": e.opts.Site, "loggedIn": false}})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if !e.ctrl.LoggedIn() {
				return writeErr(cmd, errNotLoggedIn)
			}
			u, err := e.client.User(ctxOf(cmd), e.ctrl.Auth().UserID)
			if err != nil {
				e.ctrl.HandleError(ctxOf(cmd), err, nil)
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"site":    e.opts.Site,
				"user":    u,
				"canEdit": e.ctrl.CanEdit(),
			}})
		},
	}
}
