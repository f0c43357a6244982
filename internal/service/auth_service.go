package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/domain"
	pw "github.com/terrasense/agrigate/internal/password"
	"github.com/terrasense/agrigate/internal/repository"
	"github.com/terrasense/agrigate/internal/token"
)

const minPasswordLength = 8

// Emails are matched as given; no case normalization is applied.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Session is the payload returned by register and login.
type Session struct {
	User  domain.UserView `json:"user"`
	Token string          `json:"token"`
}

// AuthService orchestrates registration, login and token resolution.
type AuthService struct {
	users  repository.UserRepository
	codec  *token.Codec
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, codec *token.Codec, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		codec:  codec,
		logger: logger,
		tracer: otel.Tracer("github.com/terrasense/agrigate/internal/service"),
	}
}

// Register validates the payload, creates the user and issues a token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	if name == "" || email == "" || password == "" {
		return Session{}, newAPIError(CodeValidation, "Les champs name, email et password sont requis", http.StatusBadRequest)
	}
	if !emailPattern.MatchString(email) {
		return Session{}, newAPIError(CodeValidation, "Format d'email invalide", http.StatusBadRequest)
	}

	// A taken email conflicts before any further field validation; Create's
	// atomic check below still closes the concurrent-registration race.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return Session{}, emailTaken()
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return Session{}, fmt.Errorf("check email: %w", err)
	}

	if len(password) < minPasswordLength {
		return Session{}, newAPIError(CodeValidation, "Le mot de passe doit contenir au moins 8 caractères", http.StatusBadRequest)
	}

	hashed, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           repository.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
		Farms:        []string{},
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return Session{}, emailTaken()
		}
		span.RecordError(err)
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	raw, err := s.codec.Issue(created.ID)
	if err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("auth.register.success", "user_id", created.ID)
	return Session{User: created.Sanitize(), Token: raw}, nil
}

// Login checks credentials and issues a token. Unknown email and wrong
// password produce the same response so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	if email == "" || password == "" {
		return Session{}, newAPIError(CodeValidation, "L'email et le mot de passe sont requis", http.StatusBadRequest)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			span.RecordError(err)
		}
		return Session{}, invalidCredentials()
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return Session{}, invalidCredentials()
	}

	raw, err := s.codec.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("auth.login.success", "user_id", user.ID)
	return Session{User: user.Sanitize(), Token: raw}, nil
}

// ResolveToken verifies a bearer token and loads the user it designates.
func (s *AuthService) ResolveToken(ctx context.Context, raw string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResolveToken")
	defer span.End()

	userID, err := s.codec.Verify(raw)
	if err != nil {
		return domain.User{}, newAPIError(CodeInvalidToken, "Token invalide ou expiré", http.StatusUnauthorized)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, newAPIError(CodeNotFound, "Utilisateur non trouvé", http.StatusNotFound)
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// CurrentUser resolves a token to the sanitized user snapshot.
func (s *AuthService) CurrentUser(ctx context.Context, raw string) (domain.UserView, error) {
	user, err := s.ResolveToken(ctx, raw)
	if err != nil {
		return domain.UserView{}, err
	}
	return user.Sanitize(), nil
}

// Logout is a stateless acknowledgment. Tokens are not revoked server-side;
// they stay valid until natural expiry and the client discards its copy.
func (s *AuthService) Logout(ctx context.Context) string {
	return "Déconnexion réussie"
}

func invalidCredentials() *APIError {
	return newAPIError(CodeInvalidCredentials, "Identifiants invalides", http.StatusUnauthorized)
}

func emailTaken() *APIError {
	return newAPIError(CodeConflict, "Cet email est déjà utilisé", http.StatusConflict)
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
