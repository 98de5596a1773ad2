package apiclient

import (
	"context"
	"net/http"

	"pipewatch.org/internal/credentials"
)

// User is the profile shape returned by the API.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// LoginParams are the credentials presented to POST /auth/login.
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId,omitempty"`
}

// LoginResult is a freshly minted credential pair and the authenticated user.
type LoginResult struct {
	Pair credentials.Pair
	User User
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         User   `json:"user"`
}

// RegisterParams creates a new account. Registration does not authenticate.
type RegisterParams struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// ProfileUpdate carries the fields of a profile PUT; nil fields are omitted.
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty"`
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

type userEnvelope struct {
	User User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login exchanges credentials for a token pair. The caller decides where the
// pair is persisted; Login itself does not touch the store, so a failed
// re-authentication cannot disturb an existing session.
func (c *Client) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	var resp loginResponse
	if err := c.callPublic(ctx, http.MethodPost, "/auth/login", params, &resp); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Pair: credentials.Pair{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
		},
		User: resp.User,
	}, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, params RegisterParams) (User, error) {
	var resp userEnvelope
	if err := c.callPublic(ctx, http.MethodPost, "/auth/register", params, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Logout invalidates the session server-side. Callers treat it as
// best-effort; client state is cleared regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Profile fetches the authenticated user, refreshing the credential pair
// transparently when the access token has lapsed.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var resp userEnvelope
	if err := c.call(ctx, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// UpdateProfile replaces profile fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	var resp userEnvelope
	if err := c.call(ctx, http.MethodPut, "/auth/profile", update, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the account password for the authenticated user.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.call(ctx, http.MethodPost, "/auth/change-password",
		changePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword asks the server to start a password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.callPublic(ctx, http.MethodPost, "/auth/forgot-password",
		forgotPasswordRequest{Email: email}, nil)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword completes a password reset flow.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return c.callPublic(ctx, http.MethodPost, "/auth/reset-password",
		resetPasswordRequest{Token: resetToken, NewPassword: newPassword}, nil)
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail confirms an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, verificationToken string) error {
	return c.callPublic(ctx, http.MethodPost, "/auth/verify-email",
		verifyEmailRequest{Token: verificationToken}, nil)
}
