// Package auth はOAuthログインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/threadboard/internal/metrics"
	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したプロフィール。
type OAuthUserInfo struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL は同意画面へのURLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// PictureFilter はプロフィール画像URLを保存前に検査する。
// 安全でないURLには空文字列を返す。
type PictureFilter interface {
	SafeProfileURL(rawURL string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はログイン・ログアウト・現在ユーザーの解決を提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	pictures    PictureFilter
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
// picturesがnilの場合は画像URLを検査せずに保存し、collectorがnilの場合はメトリクスを記録しない。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	pictures PictureFilter,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		pictures:    pictures,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを交換してユーザーを特定し、セッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.FindOrCreateUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// FindOrCreateUser は(provider, providerUserID)に対応するユーザーを返す。
// 未登録の場合はユーザーとidentityを作成する。同じ外部アカウントで何度ログインしても
// 同一のユーザーが返り、初回ログインが並行した場合も先に作成された方に収束する。
// 既存ユーザーのプロフィールは更新しない。
func (s *Service) FindOrCreateUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	user, err := s.findByIdentity(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.metrics.RecordLogin(false)
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
		return user, nil
	}

	picture := info.Picture
	if s.pictures != nil {
		picture = s.pictures.SafeProfileURL(picture)
	}

	now := s.now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		Picture:   picture,
		CreatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, identity)
	if errors.Is(err, repository.ErrDuplicateIdentity) {
		// 並行ログインで先に作成された側を採用する
		winner, findErr := s.findByIdentity(ctx, info.Provider, info.ProviderUserID)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, fmt.Errorf("identity disappeared after duplicate insert: %s/%s", info.Provider, info.ProviderUserID)
		}
		s.metrics.RecordLogin(false)
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	s.metrics.RecordLogin(true)
	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", newUser.Email),
		slog.String("provider", info.Provider),
	)
	return newUser, nil
}

func (s *Service) findByIdentity(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, provider, providerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return nil, nil
	}
	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found for identity: %s", identity.ID)
	}
	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションIDからユーザーを解決する。
// セッションが存在しない・期限切れ・ユーザー不在の場合は nil, nil を返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は32バイトの乱数を16進文字列にしたセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
