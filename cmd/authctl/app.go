package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/jwt"
)

const passwordEnv = "AUTHCTL_PASSWORD"

var errUsage = errors.New("usage: authctl [flags] <login|logout|status|whoami|devices|revoke|history|forgot|reset|get|fingerprint> [args]")

// App runs one authctl command against a [goAuthClient.Client].
type App struct {
	client *goAuthClient.Client
	in     *bufio.Reader
	out    io.Writer
}

// NewApp builds the client. logOut may be nil to disable logging.
func NewApp(cfg goAuthClient.Config, logOut io.Writer, in *bufio.Reader, out io.Writer) (*App, error) {
	b := goAuthClient.New().WithConfig(cfg)
	if logOut != nil {
		b.WithLogOutput(logOut)
	}
	client, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &App{client: client, in: in, out: out}, nil
}

func (a *App) Close() error {
	return a.client.Close()
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "login":
		if len(rest) != 1 {
			return errUsage
		}
		return a.login(ctx, rest[0])
	case "logout":
		res := a.client.Logout(ctx)
		if res.RemoteErr != nil {
			fmt.Fprintf(a.out, "signed out locally; server logout failed: %v\n", res.RemoteErr)
			return nil
		}
		fmt.Fprintln(a.out, "signed out")
		return res.LocalErr
	case "status":
		fmt.Fprintf(a.out, "state: %s\n", a.client.State())
		creds, ok := a.client.Sessions().Credentials()
		if ok {
			fmt.Fprintf(a.out, "user: %s\ntenant: %s\n", creds.UserEmail, creds.TenantID)
			if exp := jwt.Expiry(creds.AccessToken); !exp.IsZero() {
				fmt.Fprintf(a.out, "access token expires: %s\n", exp.Local().Format("2006-01-02 15:04:05"))
			}
		}
		for _, w := range a.client.SecurityReport().Warnings {
			fmt.Fprintf(a.out, "warning: %s\n", w)
		}
		return nil
	case "whoami":
		u, err := a.client.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s <%s> tenant=%s 2fa=%t\n", u.Name, u.Email, u.CompanyID, u.TwoFactorEnabled)
		return nil
	case "devices":
		devices, err := a.client.TrustedDevices(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			marker := " "
			if d.Current {
				marker = "*"
			}
			fmt.Fprintf(a.out, "%s %s  %s  last used %s\n", marker, d.ID, d.Name, d.LastUsedAt.Local().Format("2006-01-02"))
		}
		return nil
	case "revoke":
		if len(rest) != 1 {
			return errUsage
		}
		return a.client.RevokeTrustedDevice(ctx, rest[0])
	case "history":
		limit := 0
		if len(rest) == 1 {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return fmt.Errorf("history limit: %w", err)
			}
			limit = n
		}
		entries, err := a.client.LoginHistory(ctx, limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			result := "ok"
			if !e.Success {
				result = "failed"
			}
			fmt.Fprintf(a.out, "%s  %-6s  %s  %s\n", e.At.Local().Format("2006-01-02 15:04"), result, e.IP, e.DeviceName)
		}
		return nil
	case "forgot":
		if len(rest) != 1 {
			return errUsage
		}
		if err := a.client.ForgotPassword(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "if the account exists, a reset link was sent")
		return nil
	case "reset":
		if len(rest) != 2 {
			return errUsage
		}
		if err := a.client.ResetPassword(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "password updated")
		return nil
	case "get":
		if len(rest) != 1 {
			return errUsage
		}
		return a.get(ctx, rest[0])
	case "fingerprint":
		fp, err := a.client.DeviceFingerprint(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, fp)
		return nil
	default:
		return errUsage
	}
}

// login walks the whole state machine in one process since pending
// challenges are never persisted.
func (a *App) login(ctx context.Context, email string) error {
	password := os.Getenv(passwordEnv)
	if password == "" {
		p, err := a.prompt("password: ")
		if err != nil {
			return err
		}
		password = p
	}

	res, err := a.client.Login(ctx, email, password)
	for {
		if err != nil {
			switch {
			case errors.Is(err, goAuthClient.ErrInvalidCode),
				errors.Is(err, goAuthClient.ErrInvalidOrExpiredToken),
				errors.Is(err, goAuthClient.ErrResendCooldown):
				fmt.Fprintf(a.out, "%v\n", err)
			default:
				return err
			}
		} else {
			switch res.State {
			case goAuthClient.StateAuthenticated:
				fmt.Fprintf(a.out, "signed in (tenant %s)\n", res.TenantID)
				return nil
			case goAuthClient.StatePendingTwoFactor:
				fmt.Fprintln(a.out, "two-factor code required")
			case goAuthClient.StatePendingDeviceVerification:
				fmt.Fprintln(a.out, "new device: check your email for the verification token")
			}
		}

		state := a.client.State()
		label := "code"
		if state == goAuthClient.StatePendingDeviceVerification {
			label = "token"
		}
		answer, perr := a.prompt(label + " (or 'resend'): ")
		if perr != nil {
			a.client.CancelLogin()
			return perr
		}

		switch {
		case answer == "resend":
			err = a.client.ResendVerification(ctx)
			if err == nil {
				fmt.Fprintln(a.out, "sent")
			}
			res = &goAuthClient.LoginResult{State: a.client.State()}
		case state == goAuthClient.StatePendingDeviceVerification:
			res, err = a.client.VerifyDevice(ctx, answer)
		default:
			res, err = a.client.VerifyTwoFactor(ctx, answer)
		}
		if err == nil && res.State == goAuthClient.StateUnauthenticated {
			return goAuthClient.ErrNoPendingChallenge
		}
	}
}

func (a *App) get(ctx context.Context, path string) error {
	base := strings.TrimRight(a.client.Config().API.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return err
	}
	resp, err := a.client.HTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintf(a.out, "%s\n", resp.Status)
	_, err = io.Copy(a.out, resp.Body)
	return err
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
