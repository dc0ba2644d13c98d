package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobtracker/pkg/auth"
	"jobtracker/pkg/domain"
	"jobtracker/pkg/store"
)

// Register creates an account and issues a token. Checks run in a fixed
// order: email shape, password length, user cap, then email uniqueness.
func (a *App) Register(ctx context.Context, email, password string) (domain.User, string, error) {
	email = auth.NormalizeEmail(email)
	if err := auth.ValidateEmail(email); err != nil {
		return domain.User{}, "", ValidationError(err.Error())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", ValidationError(err.Error())
	}
	// Checked again by CreateUser inside its transaction.
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if count >= a.maxUsersTotal {
		return domain.User{}, "", a.userCapError()
	}
	if _, exists, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return domain.User{}, "", fmt.Errorf("get user: %w", err)
	} else if exists {
		return domain.User{}, "", ConflictError(msgEmailTaken)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    domain.NewTimestamp(time.Now()),
	})
	switch {
	case errors.Is(err, store.ErrCapacity):
		return domain.User{}, "", a.userCapError()
	case errors.Is(err, store.ErrDuplicate):
		return domain.User{}, "", ConflictError(msgEmailTaken)
	case err != nil:
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

func (a *App) userCapError() *Error {
	return CapacityError(fmt.Sprintf("User limit reached (%d total).", a.maxUsersTotal))
}

// Login verifies credentials. Unknown email and wrong password fail alike.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = auth.NormalizeEmail(email)
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("get user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", AuthError(msgInvalidCredentials)
	}
	token, err := a.sessions.NewSession(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Resolve maps a bearer token to its user. Tokens of deleted users are rejected.
func (a *App) Resolve(ctx context.Context, token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if errors.Is(err, store.ErrInvalidSession) || (err == nil && !ok) {
		return domain.User{}, AuthError(msgUnauthorized)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("check session: %w", err)
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, AuthError(msgUnauthorized)
	}
	return user, nil
}

// Logout revokes the token until it would have expired.
func (a *App) Logout(_ context.Context, token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// DeleteAccount removes the user, everything they own, and revokes token.
func (a *App) DeleteAccount(ctx context.Context, userID int64, token string) error {
	if err := translate(a.store.DeleteUser(ctx, userID), msgNotFound); err != nil {
		return err
	}
	return a.Logout(ctx, token)
}

// Me returns the public record of a user.
func (a *App) Me(ctx context.Context, userID int64) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, NotFoundError(msgNotFound)
	}
	return user, nil
}
