package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/accessone/backend/internal/mailer"
	"github.com/accessone/backend/internal/models"
)

// AuthService handles registration, login, and token lifecycle. Registration
// can be OTP-gated: the user payload is staged inside the OTP record's
// metadata and only materialized once the code is confirmed.
type AuthService struct {
	db       *sql.DB
	redis    *redis.Client
	otp      *OTPService
	accounts *AccountService
	notifier mailer.Notifier
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, otp *OTPService, accounts *AccountService, notifier mailer.Notifier) *AuthService {
	return &AuthService{
		db:       db,
		redis:    redisClient,
		otp:      otp,
		accounts: accounts,
		notifier: notifier,
	}
}

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName" validate:"required,min=2"`
	LastName    string `json:"lastName" validate:"required,min=2"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Address     string `json:"address" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
}

const otpMetaPendingUser = "pending_user"

// Register creates the user and their first savings account in one database
// transaction.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	number, err := s.accounts.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	user := &models.User{
		Email:       strings.ToLower(input.Email),
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		PhoneNumber: input.PhoneNumber,
		Address:     input.Address,
		DateOfBirth: input.DateOfBirth,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password, first_name, last_name, phone_number, address, date_of_birth, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		RETURNING id
	`, user.Email, hashedPassword, user.FirstName, user.LastName, user.PhoneNumber, user.Address, user.DateOfBirth, now).Scan(&user.ID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", user.Email, err)
		return nil, ErrEmailExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, account_number, account_type, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $5)
	`, int(user.ID), string(number), string(models.SavingsAccount), models.AccountActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	log.Printf("[AUTH] User created - ID: %d, Email: %s", user.ID, user.Email)
	return user, nil
}

// RegisterInitiate stages the registration payload and emails a confirmation
// code. Nothing is written to the users table until the code verifies.
func (s *AuthService) RegisterInitiate(ctx context.Context, input RegisterInput) error {
	email := strings.ToLower(input.Email)

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if exists {
		return ErrEmailExists
	}

	pendingJSON, err := json.Marshal(input)
	if err != nil {
		return err
	}

	record, err := s.otp.Issue(ctx, email, models.OTPPurposeRegister, map[string]string{
		otpMetaPendingUser: string(pendingJSON),
	}, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %s.", record.Code, s.otp.CodeTTL())
	if err := s.notifier.Send(email, "Your Registration OTP", body); err != nil {
		_ = s.otp.Revoke(ctx, record.ID)
		return fmt.Errorf("%w: failed to send otp email: %v", ErrDependency, err)
	}

	return nil
}

// RegisterVerify consumes the registration OTP and creates the staged user.
func (s *AuthService) RegisterVerify(ctx context.Context, email, code string) (*models.User, error) {
	record, err := s.otp.Verify(ctx, strings.ToLower(email), models.OTPPurposeRegister, code)
	if err != nil {
		return nil, err
	}

	pendingJSON, ok := record.Metadata[otpMetaPendingUser]
	if !ok {
		return nil, ErrNotFound
	}

	var input RegisterInput
	if err := json.Unmarshal([]byte(pendingJSON), &input); err != nil {
		return nil, err
	}

	return s.Register(ctx, input)
}

// Authenticate verifies credentials and issues a signed token.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	var user models.User
	var hashedPassword string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone_number, address, date_of_birth, is_active, created_at, updated_at
		     , password
		FROM users
		WHERE email = $1
	`, strings.ToLower(email)).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PhoneNumber,
		&user.Address, &user.DateOfBirth, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		&hashedPassword,
	)
	if err == sql.ErrNoRows {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}

	if !verifyPassword(password, hashedPassword) {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, now, int(user.ID)); err != nil {
		log.Printf("[AUTH] Failed to record last login for user %d: %v", user.ID, err)
	}
	user.LastLogin = &now

	token, err := generateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	return &user, token, nil
}

// ChangePassword swaps the stored hash after re-verifying the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID models.UserID, oldPassword, newPassword string) error {
	var hashedPassword string
	err := s.db.QueryRowContext(ctx, `SELECT password FROM users WHERE id = $1`, int(userID)).Scan(&hashedPassword)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if !verifyPassword(oldPassword, hashedPassword) {
		return ErrInvalidCredentials
	}

	newHash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`, newHash, time.Now().UTC(), int(userID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	return nil
}

// UserByID loads a user's public profile.
func (s *AuthService) UserByID(ctx context.Context, userID models.UserID) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone_number, address, date_of_birth, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, int(userID)).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PhoneNumber,
		&user.Address, &user.DateOfBirth, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return &user, nil
}

// Logout blacklists the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" || s.redis == nil {
		return
	}

	key := fmt.Sprintf("blacklist:%s", token)
	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
		log.Printf("[AUTH] Failed to blacklist token: %v", err)
	}
}

func generateJWT(userID models.UserID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": int(userID),
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
