package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the user was not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists indicates the email is already registered
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates invalid login credentials
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordTooShort indicates the password is too short
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrInvalidAPIKey indicates the API key resolved to no active user
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrStoreUnavailable indicates the database is not reachable
	ErrStoreUnavailable = errors.New("database unavailable")
)

// bcryptCost matches the salt rounds the extension backend always used
const bcryptCost = 12

// apiKeyBytes is the entropy of generated API keys (64 hex chars)
const apiKeyBytes = 32

// UserService handles account lifecycle and API key resolution. The
// database may be nil, in which case provisioning and key lookup fall
// back to temp-user entries in the access log.
type UserService struct {
	db     *gorm.DB
	logs   *logstore.Store
	logger *slog.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB, logs *logstore.Store, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{db: db, logs: logs, logger: logger}
}

// Available reports whether the primary store is reachable
func (s *UserService) Available() bool {
	return s.db != nil
}

// Register creates a new account with a hashed password and a fresh API key
func (s *UserService) Register(email, name, password string) (*models.User, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	newUser := &models.User{
		Email:           email,
		Name:            name,
		PasswordHash:    string(hashed),
		APIKey:          apiKey,
		IsActive:        true,
		TrackingEnabled: true,
		NotifyOnOpen:    true,
	}
	if err := s.db.Create(newUser).Error; err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login verifies credentials and updates login bookkeeping
func (s *UserService) Login(email, password string) (*models.User, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.LoginCount++
	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AutoProvision returns the account for the given email, creating one
// with a random placeholder credential when none exists. Idempotent per
// email address: an existing account returns its existing key. With the
// database down, the account lives as a temp-user entry in the access
// log so the extension can keep authenticating.
func (s *UserService) AutoProvision(email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		name = email
	}

	if s.db == nil {
		if tu, ok := s.logs.FindTempUserByEmail(email); ok {
			return tempUserModel(tu), nil
		}
		apiKey, err := generateAPIKey()
		if err != nil {
			return nil, err
		}
		tu := logstore.TempUser{
			Type:      logstore.EntryTypeTempUser,
			Email:     email,
			Name:      name,
			APIKey:    apiKey,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.logs.AppendRaw(tu); err != nil {
			return nil, err
		}
		metrics.StoreFallbacks.Inc()
		s.logger.Warn("provisioned temp user in log fallback", "email", email)
		return tempUserModel(&tu), nil
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err == nil {
		// Older accounts may predate API key issuance
		if user.APIKey == "" {
			apiKey, err := generateAPIKey()
			if err != nil {
				return nil, err
			}
			user.APIKey = apiKey
			if err := s.db.Save(&user).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Placeholder credential: auto-provisioned accounts have no usable
	// password until the owner registers explicitly
	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:           email,
		Name:            name,
		PasswordHash:    string(hashed),
		APIKey:          apiKey,
		IsActive:        true,
		TrackingEnabled: true,
		NotifyOnOpen:    true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(id uint) (*models.User, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByAPIKey resolves an API key to an active user. When the primary
// store is unreachable it scans the access log for a temp-user record
// created in degraded mode.
func (s *UserService) GetByAPIKey(apiKey string) (*models.User, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	if s.db == nil {
		if tu, ok := s.logs.FindTempUserByKey(apiKey); ok {
			return tempUserModel(tu), nil
		}
		return nil, ErrInvalidAPIKey
	}
	var user models.User
	if err := s.db.Where("api_key = ? AND is_active = ?", apiKey, true).First(&user).Error; err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &user, nil
}

// ProfileUpdate carries the optional profile fields; nil means unchanged
type ProfileUpdate struct {
	Name            *string
	TrackingEnabled *bool
	NotifyOnOpen    *bool
	DailyReports    *bool
}

// UpdateProfile applies the provided profile fields
func (s *UserService) UpdateProfile(id uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil && *update.Name != "" {
		user.Name = *update.Name
	}
	if update.TrackingEnabled != nil {
		user.TrackingEnabled = *update.TrackingEnabled
	}
	if update.NotifyOnOpen != nil {
		user.NotifyOnOpen = *update.NotifyOnOpen
	}
	if update.DailyReports != nil {
		user.DailyReports = *update.DailyReports
	}
	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// RegenerateAPIKey replaces the user's API key, invalidating the old one
func (s *UserService) RegenerateAPIKey(id uint) (string, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return "", err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return "", err
	}
	user.APIKey = apiKey
	if err := s.db.Save(user).Error; err != nil {
		return "", err
	}
	return apiKey, nil
}

// ResetPassword sets a new password without checking the old one.
// Admin/CLI operation.
func (s *UserService) ResetPassword(id uint, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrPasswordTooShort
	}
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	return s.db.Save(user).Error
}

// ListUsers returns all accounts
func (s *UserService) ListUsers() ([]models.User, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// tempUserModel adapts a log-fallback account to the user model. The
// zero ID marks it as unpersisted; record writes from such users also
// take the log-fallback path.
func tempUserModel(tu *logstore.TempUser) *models.User {
	return &models.User{
		Email:           tu.Email,
		Name:            tu.Name,
		APIKey:          tu.APIKey,
		IsActive:        true,
		TrackingEnabled: true,
	}
}

// generateAPIKey generates a cryptographically secure random key
func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
