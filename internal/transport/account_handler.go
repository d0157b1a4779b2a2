package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Account      AccountProfile `json:"account"`
}

// EnrollVIPResponse carries the freshly assigned membership number
type EnrollVIPResponse struct {
	VIPNumber string `json:"vip_number"`
	Message   string `json:"message"`
}

// AccountProfile represents account data safe to return to clients
type AccountProfile struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Name              string  `json:"name"`
	Role              string  `json:"role"`
	VIPNumber         *string `json:"vip_number,omitempty"`
	VIPApprovedOrders int     `json:"vip_approved_orders"`
}

func toAccountProfile(account *domain.Account) AccountProfile {
	return AccountProfile{
		ID:                account.ID.String(),
		Email:             account.Email,
		Name:              account.Name,
		Role:              account.Role,
		VIPNumber:         account.VIPNumber,
		VIPApprovedOrders: account.VIPApprovedOrders,
	}
}

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService service.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// RegisterRoutes registers all account routes
func (h *AccountHandler) RegisterRoutes(r chi.Router, authMiddleware, staffMiddleware, rateLimiter func(http.Handler) http.Handler) {
	r.Route("/api/accounts", func(r chi.Router) {
		// Public routes, rate limited
		r.Group(func(r chi.Router) {
			if rateLimiter != nil {
				r.Use(rateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
		r.Post("/refresh", h.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/profile", h.GetProfile)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/vip/enroll", h.EnrollVIP)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(staffMiddleware)
		r.Get("/api/admin/customers", h.ListCustomers)
	})
}

// Register handles customer registration
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrAccountAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, "account with this email already exists")
			return
		}

		h.logger.Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to register account")
		return
	}

	h.logger.Info("Account registered", zap.String("account_id", account.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, toAccountProfile(account))
}

// Login handles account authentication
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accessToken, refreshToken, account, err := h.accountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		h.logger.Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.logger.Info("Account logged in", zap.String("account_id", account.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      toAccountProfile(account),
	})
}

// Logout handles logout by revoking the refresh token
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accountService.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error("Logout failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken exchanges a refresh token for a new access token
func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newAccessToken, err := h.accountService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		if errors.Is(err, service.ErrTokenExpired) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
			return
		}

		h.logger.Error("Token refresh failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"access_token": newAccessToken})
}

// GetProfile returns the authenticated account's profile with VIP progress
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toAccountProfile(account))
}

// EnrollVIP joins the authenticated account to the VIP Circle
func (h *AccountHandler) EnrollVIP(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	vipNumber, err := h.accountService.EnrollVIP(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyEnrolled) {
			middleware.RespondWithError(w, http.StatusBadRequest, "already enrolled in VIP Circle")
			return
		}

		h.logger.Error("VIP enrollment failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to enroll in VIP Circle")
		return
	}

	h.logger.Info("Account enrolled in VIP Circle",
		zap.String("account_id", account.ID.String()),
		zap.String("vip_number", vipNumber),
	)
	middleware.RespondWithJSON(w, http.StatusOK, EnrollVIPResponse{
		VIPNumber: vipNumber,
		Message:   "Successfully enrolled in VIP Circle!",
	})
}

// ListCustomers returns the customer directory for staff
func (h *AccountHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.accountService.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list customers", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}

	profiles := make([]AccountProfile, 0, len(customers))
	for _, customer := range customers {
		profiles = append(profiles, toAccountProfile(customer))
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"customers": profiles})
}

// requireAccount resolves the authenticated account from the request
// context set by the auth middleware.
func (h *AccountHandler) requireAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	accountIDStr, ok := middleware.GetAccountID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid account ID")
		return nil, false
	}

	account, err := h.accountService.GetByID(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to load account", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load account")
		return nil, false
	}

	return account, true
}
