// Package auth implements account registration, credential checks and
// bearer-token authentication for the API.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
	"github.com/DENisProd/C0NSTRUCT0R/internal/ratelimit"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user with this email or username already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// TokenResponse is the login payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Service owns account credentials and session tokens.
type Service struct {
	db            *sql.DB
	limiter       *ratelimit.Limiter
	jwtSecret     []byte
	tokenLifetime time.Duration
	totp          *TOTP
}

// NewService creates the auth service. The limiter may be nil, in which
// case failed-login throttling is disabled.
func NewService(db *sql.DB, limiter *ratelimit.Limiter, jwtSecret string, tokenLifetime time.Duration, totp *TOTP) *Service {
	return &Service{
		db:            db,
		limiter:       limiter,
		jwtSecret:     []byte(jwtSecret),
		tokenLifetime: tokenLifetime,
		totp:          totp,
	}
}

// Register creates an account. Email and username must both be unused.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if len(username) < 3 || len(username) > 50 {
		return nil, fmt.Errorf("username must be between 3 and 50 characters")
	}
	if len(password) < 8 || len(password) > 128 {
		return nil, fmt.Errorf("password must be between 8 and 128 characters")
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)
	`, email, username).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user models.User
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, has_avatar, created_at, updated_at
	`, username, email, hash).Scan(
		&user.ID, &user.Username, &user.Email, &user.HasAvatar,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[INFO] Registered user %s (id=%d)", user.Username, user.ID)
	return &user, nil
}

// Login checks the credentials and mints a bearer token. When the account
// has TOTP enabled a valid code is required as well.
func (s *Service) Login(ctx context.Context, email, password, totpCode, ip string) (*TokenResponse, error) {
	if err := s.limiter.CheckLogin(ctx, email, ip); err != nil {
		return nil, ErrTooManyAttempts
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.limiter.RecordFailedLogin(ctx, email, ip)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.limiter.RecordFailedLogin(ctx, email, ip)
		return nil, ErrInvalidCredentials
	}

	if err := s.totp.RequireLoginCode(user, totpCode); err != nil {
		return nil, err
	}

	token, err := s.CreateToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.limiter.ResetLogin(ctx, email)
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenLifetime.Seconds()),
	}, nil
}

// RemainingLoginAttempts reports how many failed attempts the account has
// left before throttling kicks in.
func (s *Service) RemainingLoginAttempts(ctx context.Context, email string) int {
	remaining, _ := s.limiter.GetRemainingAttempts(ctx, email)
	return remaining
}

// ChangePassword rehashes after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrWrongPassword
	}
	if len(newPassword) < 8 || len(newPassword) > 128 {
		return fmt.Errorf("password must be between 8 and 128 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2
	`, hash, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// CreateToken mints a signed token whose subject is the user id.
func (s *Service) CreateToken(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(s.tokenLifetime)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a token and returns the user id it names.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// UserByID loads a user by primary key.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id))
}

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE email = $1`, email))
}

const userSelect = `
	SELECT id, username, email, password_hash, nickname, avatar_url, has_avatar,
	       totp_secret, totp_enabled, created_at, updated_at
	FROM users`

func (s *Service) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var nickname, avatarURL, totpSecret sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&nickname, &avatarURL, &user.HasAvatar,
		&totpSecret, &user.TOTPEnabled,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.Nickname = nickname.String
	user.AvatarURL = avatarURL.String
	user.TOTPSecret = totpSecret.String
	return &user, nil
}

type contextKey string

const userContextKey contextKey = "currentUser"

// UserFromContext returns the authenticated user set by Middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// Middleware authenticates requests with a Bearer token and stores the
// user on the request context. Requests without a valid token get 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, "authentication required")
			return
		}

		userID, err := s.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		user, err := s.UserByID(r.Context(), userID)
		if err != nil {
			unauthorized(w, "user not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error": %q}`+"\n", message)
}

// ClientIP extracts the caller address, honoring X-Forwarded-For from the
// reverse proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
