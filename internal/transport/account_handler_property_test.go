package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func newAccountHandler() (*AccountHandler, service.AccountService, *mockAccountRepository) {
	accountRepo := newMockAccountRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	accountService := service.NewAccountService(accountRepo, refreshTokenRepo, "test-secret")
	return NewAccountHandler(accountService, zap.NewNop()), accountService, accountRepo
}

// Feature: storefront, Property 15: Invalid registration data is rejected
// Validates: Requirements 1.5
func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {
			handler, _, _ := newAccountHandler()

			var reqBody RegisterRequest

			// Generate different invalid cases
			switch invalidCase % 4 {
			case 0:
				// Empty email
				reqBody = RegisterRequest{
					Email:    "",
					Password: "ValidPass123",
					Name:     "Jordan Doe",
				}
			case 1:
				// Invalid email format
				reqBody = RegisterRequest{
					Email:    "not-an-email",
					Password: "ValidPass123",
					Name:     "Jordan Doe",
				}
			case 2:
				// Short password (less than 8 characters)
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "short",
					Name:     "Jordan Doe",
				}
			case 3:
				// Missing name
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "ValidPass123",
				}
			}

			body, _ := json.Marshal(reqBody)
			req := httptest.NewRequest(http.MethodPost, "/api/accounts/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != http.StatusBadRequest && w.Code != http.StatusConflict {
				t.Logf("FAIL: Expected 400 or 409 status code, got %d", w.Code)
				return false
			}

			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Logf("FAIL: Could not decode error response: %v", err)
				return false
			}
			if _, exists := response["error"]; !exists {
				t.Logf("FAIL: Response missing 'error' field")
				return false
			}

			return true
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 16: Valid login returns both tokens
// Validates: Requirements 2.1
func TestProperty_ValidLoginReturnsBothTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid login returns access token and refresh token", prop.ForAll(
		func(email string, password string, name string) bool {
			handler, accountService, _ := newAccountHandler()

			if _, err := accountService.Register(context.Background(), email, password, name); err != nil {
				return true // Skip if registration fails
			}

			loginReq := LoginRequest{Email: email, Password: password}
			body, _ := json.Marshal(loginReq)
			req := httptest.NewRequest(http.MethodPost, "/api/accounts/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != http.StatusOK {
				t.Logf("FAIL: Expected 200 status code, got %d", w.Code)
				return false
			}

			var loginResp LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&loginResp); err != nil {
				t.Logf("FAIL: Could not decode login response: %v", err)
				return false
			}

			if loginResp.AccessToken == "" || loginResp.RefreshToken == "" {
				t.Logf("FAIL: Missing token in login response")
				return false
			}
			if loginResp.Account.Email != email {
				t.Logf("FAIL: Account email mismatch")
				return false
			}

			claims, err := accountService.ValidateToken(loginResp.AccessToken)
			if err != nil {
				t.Logf("FAIL: Access token validation failed: %v", err)
				return false
			}
			if claims.AccountID.String() != loginResp.Account.ID {
				t.Logf("FAIL: Token account ID doesn't match profile ID")
				return false
			}

			newAccessToken, err := accountService.RefreshToken(context.Background(), loginResp.RefreshToken)
			if err != nil || newAccessToken == "" {
				t.Logf("FAIL: Refresh token is not usable: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestEnrollVIPEndpoint(t *testing.T) {
	handler, _, accountRepo := newAccountHandler()

	customer := &domain.Account{
		ID:    uuid.New(),
		Email: "vip-to-be@example.com",
		Role:  domain.RoleCustomer,
	}
	accountRepo.accounts[customer.ID] = customer

	fakeAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.AccountIDKey, customer.ID.String())
			ctx = context.WithValue(ctx, middleware.AccountRoleKey, customer.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	passThrough := func(next http.Handler) http.Handler { return next }

	router := chi.NewRouter()
	handler.RegisterRoutes(router, fakeAuth, passThrough, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/vip/enroll", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("enroll answered %d: %s", w.Code, w.Body.String())
	}

	var response EnrollVIPResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if response.VIPNumber == "" {
		t.Fatal("enrollment returned no membership number")
	}
	if customer.VIPNumber == nil || *customer.VIPNumber != response.VIPNumber {
		t.Fatal("assigned number was not stored on the account")
	}

	// Enrolling again must answer 400
	req = httptest.NewRequest(http.MethodPost, "/api/vip/enroll", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second enrollment answered %d", w.Code)
	}
	if *customer.VIPNumber != response.VIPNumber {
		t.Fatal("second enrollment changed the stored number")
	}
}
