package cli

import (
	"context"
	"errors"
	"os"

	"github.com/zyx3721/ops-integrated-admin-console/internal/client/api"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/transport"
	"github.com/zyx3721/ops-integrated-admin-console/internal/common"
)

// Login prompts for credentials, authenticates and opens the realtime
// channel on success.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(password)

	_, err = a.auth.Login(ctx, api.LoginParams{
		Username: username,
		Password: string(password),
	})
	if err != nil {
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) {
			printlnFn("Login failed:", apiErr.Message)
		} else {
			printlnFn("Login failed:", err)
		}
		return err
	}

	printlnFn("Login successful")
	a.channel.Connect()
	return nil
}

// Register prompts for a new account.
func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(password)

	err = a.auth.Register(ctx, api.RegisterParams{
		Username: username,
		Password: string(password),
	})
	if err != nil {
		printlnFn("Registration failed:", err)
		return err
	}

	printlnFn("Registered, you can now log in")
	return nil
}

// Logout closes the realtime channel, drops buffered notifications and ends
// the session.
func (a *App) Logout(ctx context.Context) error {
	a.channel.Disconnect()
	a.inbox.Clear()
	a.watching = false

	if err := a.auth.Logout(ctx); err != nil {
		printlnFn("Logout failed:", err)
		return err
	}
	printlnFn("Logged out")
	return nil
}

// Whoami shows the server-side identity of the current session.
func (a *App) Whoami(ctx context.Context) error {
	info, err := a.auth.GetInfo(ctx)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	printlnFn("User:", info.User.Username, "("+info.User.Nickname+")")
	if len(info.Roles) > 0 {
		printlnFn("Roles:", info.Roles)
	}
	return nil
}

// Passwd changes the account password.
func (a *App) Passwd(ctx context.Context) error {
	printlnFn("Current password")
	oldPassword, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(oldPassword)

	printlnFn("New password")
	newPassword, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.auth.UpdatePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		printlnFn("Password change failed:", err)
		return err
	}
	printlnFn("Password changed")
	return nil
}
