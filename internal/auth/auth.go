// Package auth issues and verifies credentials: short-lived access tokens
// and single-use renewal credentials.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"student-records/internal/access"
	"student-records/internal/models"
	"student-records/internal/store"
	"student-records/internal/util"
)

const renewalTokenLen = 48

// Options configures token signing and password hashing.
type Options struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RenewalTTL time.Duration
	BcryptCost int
}

// Tokens is a freshly issued credential pair.
type Tokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RenewalToken     string    `json:"refreshToken"`
	RenewalExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Session is what a successful login or refresh returns.
type Session struct {
	Tokens
	User models.User `json:"user"`
}

// RegisterInput is a self-service account request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service is the credential service.
type Service struct {
	users    *store.UserStore
	renewals store.RenewalStore
	opts     Options
	now      func() time.Time
}

func NewService(users *store.UserStore, renewals store.RenewalStore, opts Options) *Service {
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RenewalTTL <= 0 {
		opts.RenewalTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost <= 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, renewals: renewals, opts: opts, now: time.Now}
}

// Register creates a teacher account. Admin accounts are only created by
// the bootstrap at startup.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	fields := util.ValidateStruct(in)
	if in.Password != "" && !IsStrongPassword(in.Password) {
		fields = append(fields, util.FieldError{Field: "password", Reason: "must contain upper-case, lower-case letters and digits"})
	}
	if len(fields) > 0 {
		return models.User{}, util.Invalid("validation error", fields...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.RoleTeacher,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Login checks email and password and issues a credential pair. Unknown
// email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if util.IsKind(err, util.KindNotFound) {
			return Session{}, util.Unauthenticated("invalid credentials")
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, util.Unauthenticated("invalid credentials")
	}
	tokens, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return Session{Tokens: tokens, User: u}, nil
}

// Verify resolves an access token to the calling principal.
func (s *Service) Verify(token string) (*access.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, util.Unauthenticated("missing access token")
	}
	claims, err := util.ParseToken(s.opts.Secret, s.opts.Issuer, token)
	if err != nil {
		return nil, util.Unauthenticated("invalid or expired access token")
	}
	uid, err := claims.UserID()
	if err != nil || uid == 0 {
		return nil, util.Unauthenticated("invalid access token subject")
	}
	return &access.Principal{UserID: uid, Role: claims.Role}, nil
}

// Refresh consumes a renewal credential and issues a fresh pair. The old
// renewal credential cannot be used again.
func (s *Service) Refresh(ctx context.Context, renewalToken string) (Session, error) {
	if strings.TrimSpace(renewalToken) == "" {
		return Session{}, util.Invalid("refresh token required", util.FieldError{Field: "refreshToken", Reason: "is required"})
	}
	uid, exp, err := s.renewals.Consume(ctx, util.HashToken(renewalToken))
	if err != nil {
		if errors.Is(err, store.ErrRenewalNotFound) {
			return Session{}, util.Unauthenticated("invalid refresh token")
		}
		return Session{}, err
	}
	if !s.now().Before(exp) {
		return Session{}, util.Unauthenticated("expired refresh token")
	}
	u, err := s.users.ByID(ctx, uid)
	if err != nil {
		if util.IsKind(err, util.KindNotFound) {
			return Session{}, util.Unauthenticated("user not found")
		}
		return Session{}, err
	}
	tokens, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return Session{Tokens: tokens, User: u}, nil
}

// Logout forgets a renewal credential. Unknown credentials are ignored.
func (s *Service) Logout(ctx context.Context, renewalToken string) error {
	if strings.TrimSpace(renewalToken) == "" {
		return nil
	}
	return s.renewals.Delete(ctx, util.HashToken(renewalToken))
}

// ChangePassword replaces the caller's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return util.Invalid("old password is incorrect", util.FieldError{Field: "oldPassword", Reason: "does not match"})
	}
	if !IsStrongPassword(newPassword) {
		return util.Invalid("weak password", util.FieldError{Field: "newPassword", Reason: "must be 8-72 characters with upper-case, lower-case letters and digits"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// User loads an account by id.
func (s *Service) User(ctx context.Context, id uint) (models.User, error) {
	return s.users.ByID(ctx, id)
}

func (s *Service) issue(ctx context.Context, u models.User) (Tokens, error) {
	accessToken, accessExp, err := util.GenerateToken(s.opts.Secret, s.opts.Issuer, u.ID, u.Role, s.opts.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	renewal, err := util.RandomString(renewalTokenLen)
	if err != nil {
		return Tokens{}, err
	}
	renewalExp := s.now().Add(s.opts.RenewalTTL).UTC()
	if err := s.renewals.Save(ctx, util.HashToken(renewal), u.ID, renewalExp); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp.UTC(),
		RenewalToken:     renewal,
		RenewalExpiresAt: renewalExp,
	}, nil
}

// IsStrongPassword: 8-72 characters with upper-case, lower-case letters and
// digits. bcrypt ignores anything past 72 bytes.
func IsStrongPassword(pwd string) bool {
	if len(pwd) < 8 || len(pwd) > 72 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range pwd {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}
