package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

var (
	ErrTOTPDisabled       = errors.New("totp disabled")
	ErrTOTPNotInitialized = errors.New("totp not initialized")
	ErrTOTPNotEnabled     = errors.New("totp not enabled")
	ErrInvalidTOTPCode    = errors.New("invalid totp code")
	ErrTOTPCodeRequired   = errors.New("totp code required")
)

// TOTPSetup carries the secret for the authenticator app enrollment.
type TOTPSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	Issuer          string `json:"issuer"`
	Label           string `json:"label"`
}

// TOTP manages optional second-factor enrollment. The feature is gated by
// configuration; when disabled every call fails and login ignores codes.
type TOTP struct {
	db      *sql.DB
	enabled bool
	issuer  string
}

func NewTOTP(db *sql.DB, enabled bool, issuer string) *TOTP {
	return &TOTP{db: db, enabled: enabled, issuer: issuer}
}

// Initiate generates a fresh secret for the user and stores it unconfirmed.
// Enrollment completes on the first verified code.
func (t *TOTP) Initiate(ctx context.Context, user *models.User) (*TOTPSetup, error) {
	if !t.enabled {
		return nil, ErrTOTPDisabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = $1, totp_enabled = FALSE, updated_at = NOW() WHERE id = $2
	`, key.Secret(), user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}

	return &TOTPSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		Issuer:          t.issuer,
		Label:           user.Email,
	}, nil
}

// Verify confirms enrollment with a code from the authenticator app.
func (t *TOTP) Verify(ctx context.Context, user *models.User, code string) error {
	if !t.enabled {
		return ErrTOTPDisabled
	}
	if user.TOTPSecret == "" {
		return ErrTOTPNotInitialized
	}
	if !validateCode(user.TOTPSecret, code) {
		return ErrInvalidTOTPCode
	}

	_, err := t.db.ExecContext(ctx, `
		UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1
	`, user.ID)
	if err != nil {
		return fmt.Errorf("failed to enable totp: %w", err)
	}
	return nil
}

// Disable turns the second factor off, requiring one last valid code.
func (t *TOTP) Disable(ctx context.Context, user *models.User, code string) error {
	if !t.enabled {
		return ErrTOTPDisabled
	}
	if user.TOTPSecret == "" || !user.TOTPEnabled {
		return ErrTOTPNotEnabled
	}
	if !validateCode(user.TOTPSecret, code) {
		return ErrInvalidTOTPCode
	}

	_, err := t.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = NULL, totp_enabled = FALSE, updated_at = NOW() WHERE id = $1
	`, user.ID)
	if err != nil {
		return fmt.Errorf("failed to disable totp: %w", err)
	}
	return nil
}

// RequireLoginCode enforces the second factor during login for accounts
// that enrolled. Accounts without TOTP pass through untouched.
func (t *TOTP) RequireLoginCode(user *models.User, code string) error {
	if !t.enabled || !user.TOTPEnabled {
		return nil
	}
	if user.TOTPSecret == "" {
		return ErrTOTPNotInitialized
	}
	if code == "" {
		return ErrTOTPCodeRequired
	}
	if !validateCode(user.TOTPSecret, code) {
		return ErrInvalidTOTPCode
	}
	return nil
}

// validateCode accepts codes from the adjacent time step to absorb clock
// skew between the server and the authenticator.
func validateCode(secret, code string) bool {
	if totp.Validate(code, secret) {
		return true
	}
	for _, offset := range []time.Duration{-30 * time.Second, 30 * time.Second} {
		ok, _ := totp.ValidateCustom(code, secret, time.Now().Add(offset), totp.ValidateOpts{
			Period: 30,
			Digits: 6,
		})
		if ok {
			return true
		}
	}
	return false
}
