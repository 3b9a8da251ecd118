package cli

import (
	"context"
	"errors"
	"time"
)

var errUsage = errors.New("usage")

// Login stores a session token given as argument or read without echo.
func (a *App) Login(ctx context.Context, args []string) error {
	var (
		token string
		err   error
	)
	if len(args) > 0 {
		token = args[0]
	} else {
		token, err = getSecret(a.out, "Session token")
		if err != nil {
			return err
		}
	}

	s, err := a.Sessions.Login(ctx, token)
	if err != nil {
		return err
	}
	a.printf("Signed in as %s (%s tier)\n", s.OwnerID, s.Tier)
	a.Logger.Info(ctx, "signed in", "owner", s.OwnerID, "tier", s.Tier)
	return nil
}

// Logout forgets the session token. Local data stays.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Sessions.Logout(ctx); err != nil {
		return err
	}
	a.printf("Signed out\n")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	s, err := a.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		a.printf("Not signed in\n")
		return nil
	}
	a.printf("%s, %s tier", s.OwnerID, s.Tier)
	if s.ExpiresAt != nil {
		a.printf(", token expires %s", s.ExpiresAt.Format(time.RFC3339))
	}
	a.printf(", %s\n", a.Mode())
	return nil
}
