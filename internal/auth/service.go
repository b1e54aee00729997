package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxEmailLength    = 254
	maxFullNameLength = 200
	tokenTypeBearer   = "bearer"
)

// Service authenticates accounts against an IdentityStore and issues tokens.
type Service struct {
	store  IdentityStore
	tokens *TokenIssuer
	hasher *Hasher
	now    func() time.Time
	ttl    time.Duration
	log    *zap.Logger

	decoyOnce sync.Once
	decoyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithTokenTTL configures access token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.ttl = ttl
		}
		return nil
	}
}

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h *Hasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: nil hasher")
		}
		s.hasher = h
		return nil
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store IdentityStore, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: identity store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:  store,
		tokens: tokens,
		hasher: defaultHasher,
		now:    time.Now,
		ttl:    tokens.TTL(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Hasher exposes the configured password hasher.
func (s *Service) Hasher() *Hasher { return s.hasher }

// Register creates a new account and returns a session for it.
func (s *Service) Register(ctx context.Context, reg Registration) (Session, error) {
	ident, err := s.CreateAccount(ctx, reg)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ident)
}

// CreateAccount validates reg, hashes the password and stores the account.
// A zero Role defaults to RoleResident.
func (s *Service) CreateAccount(ctx context.Context, reg Registration) (Identity, error) {
	email, err := validateEmail(reg.Email)
	if err != nil {
		return Identity{}, err
	}
	if err := validatePassword(reg.Password); err != nil {
		return Identity{}, err
	}
	name, err := validateFullName(reg.FullName)
	if err != nil {
		return Identity{}, err
	}
	role := reg.Role
	if role == RoleUnknown {
		role = RoleResident
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: %d", ErrUnknownRole, int(role))
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return Identity{}, err
	}
	now := s.now().UTC()
	ident := Identity{
		Email:        email,
		FullName:     name,
		Role:         role,
		Active:       true,
		PasswordHash: hash,
		NotifyEmail:  true,
		NotifyPush:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &ident); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return Identity{}, err
		}
		return Identity{}, unavailable(err)
	}
	return ident, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password both yield ErrInvalidCredentials; a disabled account is only
// reported once the password has been verified.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	ident, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(password, s.decoy())
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, unavailable(err)
	}
	if !s.hasher.Verify(password, ident.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if !ident.Active {
		return Session{}, ErrInactiveAccount
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, ident.ID, now); err != nil {
		s.log.Warn("record last login failed", zap.Int64("user_id", ident.ID), zap.Error(err))
	} else {
		ident.LastLogin = &now
	}
	return s.issue(ident)
}

// Authenticate resolves a bearer token to the current, active identity.
// The role is always read from the store, never from the token.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	sub, err := s.tokens.Validate(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, ErrInvalidToken
	}
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, unavailable(err)
	}
	if !ident.Active {
		return Identity{}, ErrInactiveAccount
	}
	return ident, nil
}

// Identity loads an account by id.
func (s *Service) Identity(ctx context.Context, id int64) (Identity, error) {
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, err
		}
		return Identity{}, unavailable(err)
	}
	return ident, nil
}

// ChangePassword replaces the credential of id after verifying current.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	ident, err := s.Identity(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, ident.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return unavailable(err)
	}
	return nil
}

// SetActive enables or disables an account and returns its new state.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (Identity, error) {
	if err := s.store.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, err
		}
		return Identity{}, unavailable(err)
	}
	return s.Identity(ctx, id)
}

// UpdateProfile validates and applies upd to account id.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (Identity, error) {
	if upd.Empty() {
		return s.Identity(ctx, id)
	}
	if upd.Email != nil {
		email, err := validateEmail(*upd.Email)
		if err != nil {
			return Identity{}, err
		}
		upd.Email = &email
	}
	if upd.FullName != nil {
		name, err := validateFullName(*upd.FullName)
		if err != nil {
			return Identity{}, err
		}
		upd.FullName = &name
	}
	ident, err := s.store.UpdateProfile(ctx, id, upd)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
			return Identity{}, err
		}
		return Identity{}, unavailable(err)
	}
	return ident, nil
}

func (s *Service) issue(ident Identity) (Session, error) {
	token, exp, err := s.tokens.Issue(ident.ID, s.ttl)
	if err != nil {
		return Session{}, err
	}
	ident.PasswordHash = ""
	return Session{
		Token:     token,
		TokenType: tokenTypeBearer,
		ExpiresAt: exp,
		ExpiresIn: s.ttl,
		Identity:  ident,
	}, nil
}

// decoy returns a valid hash so unknown emails cost one bcrypt comparison.
func (s *Service) decoy() string {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash("decoy-password")
	})
	return s.decoyHash
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnknownRole) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" || len(email) > maxEmailLength {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}

func validateFullName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxFullNameLength {
		return "", fmt.Errorf("%w: full name must be 1-%d characters", ErrInvalidInput, maxFullNameLength)
	}
	return name, nil
}
