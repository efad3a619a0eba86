// Package account covers customer self-service beyond the session itself:
// profile updates, password management and contact verification.
package account

import (
	"context"
	"net/url"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

// Client is the slice of the API client account management needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}, opts ...api.RequestOption) error
	Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
	Patch(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
}

// ProfileUpdate is a partial profile patch; empty fields are omitted.
type ProfileUpdate struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	RegionCode   string `json:"region_code,omitempty"`
}

// PasswordChange is the change-password payload.
type PasswordChange struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// PasswordReset completes a token-based reset.
type PasswordReset struct {
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// Detail is the generic acknowledgement response.
type Detail struct {
	Detail string `json:"detail"`
}

// ResetTokenInfo describes a valid reset token.
type ResetTokenInfo struct {
	Detail    string `json:"detail"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

// Service is the account management surface.
type Service struct{ client Client }

// NewService builds the account service.
func NewService(client Client) *Service { return &Service{client: client} }

// UpdateProfile patches the customer profile and returns the stored result.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*session.Profile, error) {
	var profile session.Profile
	if err := s.client.Patch(ctx, "/auth/profile/", update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword rotates the password for the logged-in customer.
func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) error {
	return s.client.Post(ctx, "/auth/change-password/", change, nil)
}

// RequestPasswordReset emails a reset link. The backend answers the same
// way whether or not the address exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return s.client.Post(ctx, "/auth/request-password-reset/", body, nil)
}

// ValidateResetToken checks a reset token before showing the reset form.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (*ResetTokenInfo, error) {
	var info ResetTokenInfo
	path := "/auth/reset-password/validate/?token=" + url.QueryEscape(token)
	if err := s.client.Get(ctx, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ResetPassword completes a token-based reset.
func (s *Service) ResetPassword(ctx context.Context, reset PasswordReset) error {
	return s.client.Post(ctx, "/auth/reset-password/", reset, nil)
}

// RequestEmailVerification sends the verification email.
func (s *Service) RequestEmailVerification(ctx context.Context) error {
	return s.client.Post(ctx, "/auth/request-email-verification/", nil, nil)
}

// VerifyEmail consumes an emailed verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	path := "/auth/verify-email/?token=" + url.QueryEscape(token)
	return s.client.Get(ctx, path, nil)
}

// RequestPhoneVerification sends an SMS code, optionally to a new number.
func (s *Service) RequestPhoneVerification(ctx context.Context, phoneNumber string) error {
	body := struct {
		PhoneNumber string `json:"phone_number,omitempty"`
	}{PhoneNumber: phoneNumber}
	return s.client.Post(ctx, "/auth/request-phone-verification/", body, nil)
}

// VerifyPhone consumes an SMS verification code.
func (s *Service) VerifyPhone(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return s.client.Post(ctx, "/auth/verify-phone/", body, nil)
}
