package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Prateekbala/workflow-test/internal/linkstate"
	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/store"

	"golang.org/x/oauth2"
)

// ProviderGmail is the provider name recorded on linked tokens
const ProviderGmail = "gmail"

var (
	ErrInvalidState   = errors.New("invalid or expired state")
	ErrUnauthorized   = errors.New("zap does not belong to the stated user")
	ErrExchangeFailed = errors.New("authorization code exchange failed")
)

// LinkProvider abstracts the consent-URL/exchange pair of the linking flow
type LinkProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// LinkingService orchestrates the Gmail authorization-code flow for a zap:
// consent URL, callback validation, token persistence, activation.
type LinkingService struct {
	store            *store.Store
	provider         LinkProvider
	states           *linkstate.Codec
	httpClient       *http.Client
	fallbackLifetime time.Duration
	metrics          metrics.Recorder
}

func NewLinkingService(
	s *store.Store,
	provider LinkProvider,
	states *linkstate.Codec,
	httpClient *http.Client,
	fallbackLifetime time.Duration,
	m metrics.Recorder,
) *LinkingService {
	return &LinkingService{
		store:            s,
		provider:         provider,
		states:           states,
		httpClient:       httpClient,
		fallbackLifetime: fallbackLifetime,
		metrics:          m,
	}
}

// RequestAccess builds the consent URL for a zap the caller owns. The signed
// state carries {zapID, userID} so the callback can re-derive ownership
// without a live session. Nothing is persisted at this step.
func (s *LinkingService) RequestAccess(
	ctx context.Context,
	userID, zapID string,
) (string, error) {
	if _, err := s.store.GetZapByIDAndOwner(zapID, userID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", ErrZapNotFound
		}
		return "", err
	}

	state, err := s.states.Encode(zapID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	return s.provider.AuthURL(state), nil
}

// CompleteCallback runs the callback side of the flow: verify state, verify
// ownership, exchange the code, persist the token and activate the zap in one
// transaction. The exchange is never retried: authorization codes are
// single-use and a second attempt with the same code is guaranteed to fail.
func (s *LinkingService) CompleteCallback(ctx context.Context, code, rawState string) error {
	zapID, userID, err := s.states.Decode(rawState)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	// Sole access-control gate on this endpoint: the zap must exist and be
	// owned by the user named in the signed state.
	if _, err := s.store.GetZapByIDAndOwner(zapID, userID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	start := time.Now()
	token, err := s.provider.Exchange(ctx, code)
	s.metrics.RecordTokenExchange(time.Since(start), err == nil)
	if err != nil {
		log.Printf("[Gmail] Failed to exchange code for zap=%s: %v", zapID, err)
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		// Provider omitted the expiry; assume the default lifetime
		expiresAt = time.Now().Add(s.fallbackLifetime)
	}

	err = s.store.SaveProviderTokenAndActivate(
		zapID, ProviderGmail, token.AccessToken, token.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to persist provider token: %w", err)
	}

	log.Printf("[Gmail] Linked zap=%s status=%s", zapID, models.ZapStatusActive)
	return nil
}
