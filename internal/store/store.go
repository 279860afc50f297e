package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/Prateekbala/workflow-test/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.Zap{},
		&models.Trigger{},
		&models.ProviderToken{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// User operations

func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user. Returns ErrEmailConflict when the email is
// already registered.
func (s *Store) CreateUser(user *models.User) error {
	var existing models.User
	err := s.db.Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		return ErrEmailConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return s.db.Create(user).Error
}

func (s *Store) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

// Zap operations

// CreateZap creates a zap together with its nested trigger in one transaction
func (s *Store) CreateZap(zap *models.Zap) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		trigger := zap.Trigger
		zap.Trigger = nil
		if err := tx.Create(zap).Error; err != nil {
			return err
		}
		if trigger != nil {
			trigger.ZapID = zap.ID
			if err := tx.Create(trigger).Error; err != nil {
				return err
			}
			zap.Trigger = trigger
		}
		return nil
	})
}

// GetZapByIDAndOwner looks up a zap by id and owner together. A wrong id,
// wrong owner, or deleted zap all surface as ErrRecordNotFound.
func (s *Store) GetZapByIDAndOwner(id, userID string) (*models.Zap, error) {
	var zap models.Zap
	err := s.db.Where("id = ? AND user_id = ?", id, userID).
		Preload("Trigger").
		First(&zap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &zap, nil
}

func (s *Store) GetZapsByOwner(userID string) ([]models.Zap, error) {
	var zaps []models.Zap
	err := s.db.Where("user_id = ?", userID).
		Preload("Trigger").
		Order("created_at DESC").
		Find(&zaps).Error
	return zaps, err
}

func (s *Store) UpdateZapStatus(zapID, status string) error {
	return s.db.Model(&models.Zap{}).
		Where("id = ?", zapID).
		Update("status", status).Error
}

// Provider token operations

func (s *Store) GetProviderTokenByZapID(zapID string) (*models.ProviderToken, error) {
	var token models.ProviderToken
	if err := s.db.Where("zap_id = ?", zapID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

// SaveProviderTokenAndActivate upserts the token row for a zap and flips the
// zap to active, committed as a single transaction so an activated zap always
// has a stored token. The access token and expiry are always overwritten;
// the refresh token is preserved when the new exchange omitted one.
func (s *Store) SaveProviderTokenAndActivate(
	zapID, provider, accessToken, refreshToken string,
	expiresAt time.Time,
) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var token models.ProviderToken
		err := tx.Where("zap_id = ?", zapID).First(&token).Error

		switch {
		case err == nil:
			token.Provider = provider
			token.AccessToken = accessToken
			token.ExpiresAt = expiresAt
			if refreshToken != "" {
				token.RefreshToken = refreshToken
			}
			if err := tx.Save(&token).Error; err != nil {
				return fmt.Errorf("failed to update provider token: %w", err)
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			token = models.ProviderToken{
				ID:           uuid.New().String(),
				ZapID:        zapID,
				Provider:     provider,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				ExpiresAt:    expiresAt,
			}
			if err := tx.Create(&token).Error; err != nil {
				return fmt.Errorf("failed to create provider token: %w", err)
			}

		default:
			return fmt.Errorf("failed to query provider token: %w", err)
		}

		return tx.Model(&models.Zap{}).
			Where("id = ?", zapID).
			Update("status", models.ZapStatusActive).Error
	})
}

// Count queries for metrics gauges

func (s *Store) CountZapsByStatus(status string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Zap{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *Store) CountLinkedTokens() (int64, error) {
	var count int64
	err := s.db.Model(&models.ProviderToken{}).Count(&count).Error
	return count, err
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
