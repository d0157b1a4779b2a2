package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour

	// vipNumberAttempts bounds the uniqueness retry loop for membership
	// number generation.
	vipNumberAttempts = 10
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrAlreadyEnrolled    = errors.New("already enrolled in the VIP Circle")
	// ErrVIPNumberUnavailable is returned when the bounded retry loop could
	// not find an unused membership number.
	ErrVIPNumberUnavailable = errors.New("could not allocate a unique vip number")
)

// AccountService defines account business logic: signup, authentication,
// and VIP Circle enrollment.
type AccountService interface {
	Register(ctx context.Context, email, password, name string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, account *domain.Account, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListCustomers(ctx context.Context) ([]*domain.Account, error)
	EnrollVIP(ctx context.Context, accountID uuid.UUID) (vipNumber string, err error)
}

// Claims represents the JWT claims
type Claims struct {
	AccountID uuid.UUID `json:"account_id"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

type accountService struct {
	accountRepo      repository.AccountRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtSecret        string
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(
	accountRepo repository.AccountRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtSecret string,
) AccountService {
	return &accountService{
		accountRepo:      accountRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        jwtSecret,
	}
}

// Register creates a new customer account with a hashed password. The role
// is fixed at creation; staff accounts are seeded, never self-registered.
func (s *accountService) Register(ctx context.Context, email, password, name string) (*domain.Account, error) {
	existing, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrAccountAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Login authenticates an account and returns JWT tokens
func (s *accountService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, account *domain.Account, err error) {
	account, err = s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, account, nil
}

// Logout invalidates the refresh token
func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Already gone, consider it logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *accountService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	account, err := s.accountRepo.FindByID(ctx, refreshToken.AccountID)
	if err != nil {
		return "", fmt.Errorf("failed to find account: %w", err)
	}

	newAccessToken, err := s.generateAccessToken(account)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *accountService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetByID retrieves an account by ID
func (s *accountService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListCustomers retrieves all customer accounts for the staff directory
func (s *accountService) ListCustomers(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.accountRepo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return accounts, nil
}

// EnrollVIP assigns a fresh, globally-unique membership number to the
// account. Generation retries a bounded number of times against the
// uniqueness check; once assigned the number is immutable.
func (s *accountService) EnrollVIP(ctx context.Context, accountID uuid.UUID) (string, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to find account: %w", err)
	}

	if account.IsVIP() {
		return "", ErrAlreadyEnrolled
	}

	for attempt := 0; attempt < vipNumberAttempts; attempt++ {
		number := generateVIPNumber()

		exists, err := s.accountRepo.VIPNumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check vip number: %w", err)
		}
		if exists {
			continue
		}

		err = s.accountRepo.SetVIPNumber(ctx, accountID, number)
		if err == nil {
			return number, nil
		}
		// A concurrent enrollment can win the number between the existence
		// check and the update; try a fresh one.
		if errors.Is(err, repository.ErrVIPNumberTaken) {
			continue
		}
		// SetVIPNumber matches zero rows when the account enrolled in the
		// meantime.
		if errors.Is(err, repository.ErrAccountNotFound) {
			refreshed, ferr := s.accountRepo.FindByID(ctx, accountID)
			if ferr == nil && refreshed.IsVIP() {
				return "", ErrAlreadyEnrolled
			}
		}
		return "", fmt.Errorf("failed to assign vip number: %w", err)
	}

	return "", ErrVIPNumberUnavailable
}

// generateAccessToken generates a JWT access token with account ID and role claims
func (s *accountService) generateAccessToken(account *domain.Account) (string, error) {
	expirationTime := time.Now().Add(AccessTokenExpiration)
	claims := &Claims{
		AccountID: account.ID,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *accountService) generateRefreshToken(ctx context.Context, account *domain.Account) (string, error) {
	tokenString := uuid.New().String()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		Token:     tokenString,
		ExpiresAt: time.Now().Add(RefreshTokenExpiration),
		CreatedAt: time.Now(),
		Revoked:   false,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}

// generateVIPNumber builds a candidate membership number, e.g. VIP-04183920.
func generateVIPNumber() string {
	return fmt.Sprintf("VIP-%08d", rand.IntN(100000000))
}
