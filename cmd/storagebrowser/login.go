package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/openmined/storagebrowser/internal/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd(), newLogoutCmd(), newStatusCmd())
}

func newLoginCmd() *cobra.Command {
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the storage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if password == "" {
				password = os.Getenv(envPrefix + "_PASSWORD")
			}

			login := func(user, pass string) error {
				return a.session.Login(cmd.Context(), user, pass)
			}

			if username == "" || password == "" {
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return errors.New("username and password are required when not running in a terminal")
				}
				if err := RunLoginTUI(LoginTUIOpts{
					Username:      username,
					ServerURL:     a.cfg.ServerURL,
					SubmitHandler: login,
				}); err != nil {
					return err
				}
				if a.session.Token() == "" {
					return errors.New("login cancelled")
				}
			} else if err := login(username, password); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "logged in to %s", a.cfg.ServerURL)
			return printSessionStatus(out, a.session)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, also read from "+envPrefix+"_PASSWORD")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Logout(context.WithoutCancel(cmd.Context())); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

type statusView struct {
	Server    string        `json:"server" yaml:"server"`
	Backend   string        `json:"backend" yaml:"backend"`
	LoggedIn  bool          `json:"loggedIn" yaml:"loggedIn"`
	User      *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server, the user and the active scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			view := statusView{
				Server:   a.cfg.ServerURL,
				Backend:  a.cfg.StorageType,
				LoggedIn: a.session.Token() != "",
				User:     a.session.User(),
			}
			if exp, err := session.ExpiresAt(a.session.Token()); err == nil {
				view.ExpiresAt = &exp
			}

			return render(cmd, view, func(w io.Writer) error {
				fmt.Fprintf(w, "%s%s\n", gray.Render("Server   "), green.Render(view.Server))
				fmt.Fprintf(w, "%s%s\n", gray.Render("Backend  "), view.Backend)
				if !view.LoggedIn {
					fmt.Fprintln(w, red.Render("not logged in"))
					return nil
				}
				return printSessionStatus(w, a.session)
			})
		},
	}
}

func printSessionStatus(w io.Writer, s *session.Session) error {
	if user := s.User(); user != nil {
		fmt.Fprintf(w, "%s%s\n", gray.Render("User     "), cyan.Render(user.Username))
	}
	if scope := s.ActiveScope(); scope != "" {
		fmt.Fprintf(w, "%s%s\n", gray.Render("Scope    "), scope)
	}
	if exp, err := session.ExpiresAt(s.Token()); err == nil {
		_, err := fmt.Fprintf(w, "%s%s\n", gray.Render("Expires  "), humanize.Time(exp))
		return err
	}
	return nil
}
