package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"ledger/internal/router"
)

func authCommands() []command {
	return []command{
		{name: "login", usage: "log in (-u user, password from -p, LEDGER_PASSWORD or prompt)", route: router.PathLogin, run: runLogin},
		{name: "logout", usage: "forget the stored session", run: runLogout},
		{name: "status", usage: "show whether a session is stored", run: runStatus},
		{name: "whoami", usage: "show the logged in user as the server sees it", route: router.PathRoot, run: runWhoami},
		{name: "passwd", usage: "change your password", route: router.PathRoot, run: runPasswd},
		{name: "open", usage: "navigate to a page and show where it ends", run: runOpen},
	}
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cur := e.app.Router.Current(); cur.Path != router.PathLogin {
		fmt.Fprintf(e.stdout, "Already logged in as %s\n", displayName(e))
		return nil
	}

	var err error
	if *username == "" {
		if *username, err = e.prompt("Username: ", false); err != nil {
			return err
		}
	}
	if *password == "" {
		*password = os.Getenv("LEDGER_PASSWORD")
	}
	if *password == "" {
		if *password, err = e.prompt("Password: ", true); err != nil {
			return err
		}
	}

	loc, err := e.app.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Logged in as %s\n", displayName(e))
	fmt.Fprintf(e.stdout, "Continue at %s\n", loc.FullPath())
	return nil
}

func runLogout(ctx context.Context, e *env, _ []string) error {
	if _, err := e.app.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Logged out")
	return nil
}

func runStatus(_ context.Context, e *env, _ []string) error {
	s := e.app.Session
	if !s.IsLoggedIn() {
		fmt.Fprintln(e.stdout, "Not logged in")
		return nil
	}

	fmt.Fprintf(e.stdout, "Logged in as %s\n", displayName(e))
	fmt.Fprintf(e.stdout, "Session backend: %s\n", e.rt.Config.SessionBackend)

	claims, err := s.Claims()
	switch {
	case err != nil:
		fmt.Fprintln(e.stdout, "Token expiry: unknown")
	case claims.ExpiresAt == nil:
		fmt.Fprintln(e.stdout, "Token expiry: none")
	case claims.ExpiresAt.Before(time.Now()):
		fmt.Fprintf(e.stdout, "Token expired at %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	default:
		fmt.Fprintf(e.stdout, "Token expires at %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "whoami")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	me, err := e.app.API.Auth.Me(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(e.stdout, me)
	}

	email := "-"
	if me.Email != nil {
		email = *me.Email
	}
	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "ID\t%d\n", me.ID)
	fmt.Fprintf(tw, "Username\t%s\n", me.Username)
	fmt.Fprintf(tw, "Email\t%s\n", email)
	fmt.Fprintf(tw, "Role\t%s\n", me.Role)
	fmt.Fprintf(tw, "Active\t%t\n", me.IsActive)
	fmt.Fprintf(tw, "Created\t%s\n", formatTime(me.CreatedAt.Time))
	return tw.Flush()
}

func runPasswd(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "passwd")
	oldPw := fs.String("old", "", "current password")
	newPw := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *oldPw == "" {
		if *oldPw, err = e.prompt("Current password: ", true); err != nil {
			return err
		}
	}
	if *newPw == "" {
		if *newPw, err = e.prompt("New password: ", true); err != nil {
			return err
		}
		again, err := e.prompt("Repeat new password: ", true)
		if err != nil {
			return err
		}
		if again != *newPw {
			return errors.New("passwords do not match")
		}
	}

	if err := e.app.API.Auth.ChangePassword(ctx, *oldPw, *newPw); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Password changed")
	return nil
}

func runOpen(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: ledger open <path>")
	}
	loc, err := e.app.Navigate(ctx, args[0])
	if err != nil {
		return err
	}

	if loc.FullPath() != args[0] {
		fmt.Fprintf(e.stdout, "Redirected to %s\n", loc.FullPath())
	}
	tw := newTable(e.stdout)
	fmt.Fprintf(tw, "Page\t%s\n", loc.Route.Name)
	if loc.Route.Title != "" {
		fmt.Fprintf(tw, "Title\t%s\n", loc.Route.Title)
	}
	fmt.Fprintf(tw, "Path\t%s\n", loc.FullPath())
	if next := loc.RedirectTarget(); next != "" {
		fmt.Fprintf(tw, "After login\t%s\n", next)
	}
	return tw.Flush()
}

func displayName(e *env) string {
	u := e.app.Session.User()
	if u == nil {
		return "unknown user"
	}
	return fmt.Sprintf("%s (%s)", u.Username, u.Role)
}

// prompt reads one line from stdin. Secrets are read without echo when stdin
// is a terminal.
func (e *env) prompt(label string, secret bool) (string, error) {
	fmt.Fprint(e.stderr, label)

	if f, ok := e.rawIn.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(e.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := e.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
