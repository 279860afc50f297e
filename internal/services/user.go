package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Prateekbala/workflow-test/internal/auth"
	"github.com/Prateekbala/workflow-test/internal/cache"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/store"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type UserService struct {
	store    *store.Store
	cache    cache.Cache[models.User]
	cacheTTL time.Duration
}

func NewUserService(
	s *store.Store,
	userCache cache.Cache[models.User],
	cacheTTL time.Duration,
) *UserService {
	return &UserService{
		store:    s,
		cache:    userCache,
		cacheTTL: cacheTTL,
	}
}

// SignUp registers a new account with a hashed password. The email must not
// already be registered.
func (s *UserService) SignUp(
	ctx context.Context,
	email, password, firstName, lastName string,
) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
	}

	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrEmailConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Printf("[Auth] New user registered: %s", user.ID)
	return user, nil
}

// SignIn verifies credentials against the stored hash. A missing account and
// a wrong password both return ErrInvalidCredentials so callers cannot
// enumerate registered emails.
func (s *UserService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// FederatedSignIn resolves a federated profile to a local account, creating
// one keyed by the profile's email on first login.
func (s *UserService) FederatedSignIn(
	ctx context.Context,
	provider string,
	info *auth.OAuthUserInfo,
) (*models.User, error) {
	user, err := s.store.GetUserByEmail(info.Email)
	if err == nil {
		// Existing account; refresh the avatar snapshot
		if info.AvatarURL != "" && user.AvatarURL != info.AvatarURL {
			user.AvatarURL = info.AvatarURL
			if err := s.store.UpdateUser(user); err != nil {
				log.Printf("[Auth] Failed to update avatar for user=%s: %v", user.ID, err)
			}
			_ = s.cache.Delete(ctx, userCacheKey(user.ID))
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		AvatarURL: info.AvatarURL,
		// No local password for federated accounts
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	log.Printf("[Auth] New federated user created: provider=%s user=%s", provider, user.ID)
	return user, nil
}

// GetUserByID fetches a user through the cache
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := cache.GetWithFetch(ctx, s.cache, userCacheKey(id), s.cacheTTL,
		func(ctx context.Context, _ string) (models.User, error) {
			u, err := s.store.GetUserByID(id)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		})
	if err != nil {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func userCacheKey(id string) string {
	return "user:" + id
}
