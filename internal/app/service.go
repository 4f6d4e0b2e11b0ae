package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"todolists/api/internal/auth"
	"todolists/api/internal/authpw"
	"todolists/api/internal/config"
	"todolists/api/internal/rbac"
	"todolists/api/internal/search"
	"todolists/api/internal/session"
	"todolists/api/internal/store"
	"todolists/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// DataStore is the persistence the service needs. Every backend in
// internal/store satisfies it.
type DataStore interface {
	ListTodolists(ctx context.Context, owner string) ([]store.Todolist, error)
	AllTodolists(ctx context.Context) ([]store.Todolist, error)
	GetTodolist(ctx context.Context, id string) (store.Todolist, error)
	InsertTodolist(ctx context.Context, list store.Todolist) error
	ReplaceItems(ctx context.Context, id string, expectedVersion int64, items []store.Item) (store.Todolist, error)
	UpdateTodolistField(ctx context.Context, id string, field store.ListField, value string) error
	DeleteTodolist(ctx context.Context, id string) (bool, error)
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	logger   *zap.Logger
	store    DataStore
	sessions session.Store
	accounts *authpw.Service
	search   *search.Service
	metrics  *Metrics
}

type Options struct {
	Sessions session.Store
	Accounts *authpw.Service
	Search   *search.Service
	Metrics  *Metrics
}

// New wires the service. Missing options fall back to in-process
// implementations backed by dataStore.
func New(cfg config.Config, logger *zap.Logger, dataStore DataStore, opts Options) *Service {
	if opts.Sessions == nil {
		opts.Sessions = session.NewMemoryStore(0, cfg.RefreshTTL())
	}
	if opts.Accounts == nil {
		opts.Accounts = authpw.NewService(dataStore)
	}
	if opts.Search == nil {
		opts.Search = search.NewService(logger, nil, search.NewScanner(dataStore))
	}
	return &Service{
		cfg:      cfg,
		logger:   logger.Named("service"),
		store:    dataStore,
		sessions: opts.Sessions,
		accounts: opts.Accounts,
		search:   opts.Search,
		metrics:  opts.Metrics,
	}
}

// SignUp creates an account, seeds its demo list when enabled and opens a
// session for it.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	if s.cfg.SeedDemo {
		if _, err := s.Seed(ctx, user.ID); err != nil {
			s.logger.Warn("seed demo list", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.accounts.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old one is revoked before the new
// session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.accounts.Lookup(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL())
	jti := util.NewID("jti")
	role := s.roleFor(user)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  string(role),
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), session.Data{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	}, now.Add(s.cfg.RefreshTTL())); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         string(role),
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) roleFor(user store.User) rbac.Role {
	if s.cfg.IsAdmin(user.Email) {
		return rbac.RoleAdmin
	}
	return rbac.RoleUser
}

// SessionFromToken verifies an access token and confirms its user still
// exists.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.accounts.Lookup(ctx, claims.Sub)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

// Reindex pushes every stored list to the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	lists, err := s.store.AllTodolists(ctx)
	if err != nil {
		return 0, fmt.Errorf("load todolists for reindex: %w", err)
	}
	count, err := s.search.ReindexAll(lists)
	if err != nil {
		return 0, err
	}
	s.logger.Info("reindexed todolists", zap.Int("count", count))
	return count, nil
}

// Checks pings each dependency and reports its error, nil when healthy.
func (s *Service) Checks(ctx context.Context) map[string]error {
	return map[string]error{
		"store":    s.store.Ping(ctx),
		"sessions": s.sessions.Ping(ctx),
	}
}

func requester(ctx context.Context) (auth.Identity, error) {
	identity, ok := auth.IdentityFrom(ctx)
	if !ok {
		return auth.Identity{}, errUnauthenticated
	}
	return identity, nil
}
