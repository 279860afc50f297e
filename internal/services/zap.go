package services

import (
	"context"
	"errors"
	"time"

	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/store"

	"github.com/google/uuid"
)

var ErrZapNotFound = errors.New("zap not found")

type ZapService struct {
	store   *store.Store
	metrics metrics.Recorder
}

func NewZapService(s *store.Store, m metrics.Recorder) *ZapService {
	return &ZapService{store: s, metrics: m}
}

// CreateZap creates a draft zap with its nested trigger descriptor. Only the
// trigger type is modeled; trigger parameters are not persisted.
func (s *ZapService) CreateZap(
	ctx context.Context,
	userID, name, triggerType string,
) (*models.Zap, error) {
	zap := &models.Zap{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   name,
		Status: models.ZapStatusDraft,
		Trigger: &models.Trigger{
			ID:   uuid.New().String(),
			Type: triggerType,
		},
	}

	if err := s.store.CreateZap(zap); err != nil {
		return nil, err
	}

	s.metrics.RecordZapCreated(triggerType)
	return zap, nil
}

// ListZaps returns the caller's zaps, newest first
func (s *ZapService) ListZaps(ctx context.Context, userID string) ([]models.Zap, error) {
	return s.store.GetZapsByOwner(userID)
}

// GetZap returns a zap only when it is owned by the caller
func (s *ZapService) GetZap(ctx context.Context, userID, zapID string) (*models.Zap, error) {
	zap, err := s.store.GetZapByIDAndOwner(zapID, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrZapNotFound
		}
		return nil, err
	}
	return zap, nil
}

// TokenStatus describes the linkage state of a zap
type TokenStatus struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Provider        string `json:"provider,omitempty"`
	IsValid         bool   `json:"isValid"`
}

// TokenStatus is a read-only probe of the zap's provider token. Ownership is
// verified before any token metadata is returned. No refresh is attempted;
// a token whose expiry is not strictly in the future reports as invalid.
func (s *ZapService) TokenStatus(
	ctx context.Context,
	userID, zapID string,
) (*TokenStatus, error) {
	if _, err := s.store.GetZapByIDAndOwner(zapID, userID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrZapNotFound
		}
		return nil, err
	}

	token, err := s.store.GetProviderTokenByZapID(zapID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return &TokenStatus{}, nil
		}
		return nil, err
	}

	return &TokenStatus{
		IsAuthenticated: true,
		Provider:        token.Provider,
		IsValid:         token.IsValid(time.Now()),
	}, nil
}
