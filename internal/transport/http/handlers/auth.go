package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/transport/http/middleware"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	sessions     *usecase.SessionService
	registration *usecase.RegistrationService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(sessions *usecase.SessionService, registration *usecase.RegistrationService) *AuthHandler {
	return &AuthHandler{sessions: sessions, registration: registration}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the
// credential-bearing endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares, refreshMiddlewares []gin.HandlerFunc) {
	r.POST("/register", h.register)
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.login)...)
	r.POST("/refresh", append(append([]gin.HandlerFunc{}, refreshMiddlewares...), h.refresh)...)
	r.POST("/logout", h.logout)

	authed := r.Group("", middleware.RequireAuth(h.sessions))
	authed.GET("/me", h.me)
	authed.POST("/password/change", h.changePassword)
}

func clientMeta(c *gin.Context) usecase.ClientMeta {
	meta := usecase.ClientMeta{}
	if ip := c.ClientIP(); ip != "" {
		meta.IP = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

func newTokenPairResponse(result *usecase.LoginResult) TokenPairResponse {
	return TokenPairResponse{
		Identity:     newIdentitySummary(result.Identity),
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		ExpiresIn:    result.Pair.AccessExpiresIn,
	}
}

// register creates a new identity.
func (h *AuthHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	_, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Role:     req.Role,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role"},
			{Err: usecase.ErrInvalidRegistration, Status: http.StatusBadRequest, Message: "invalid registration input"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet complexity requirements"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	// The fresh account is logged in immediately so the client gets a
	// usable pair without a second round trip.
	result, err := h.sessions.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     clientMeta(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "registration succeeded but login failed"))
		return
	}

	c.JSON(http.StatusCreated, newTokenPairResponse(result))
}

// login verifies credentials and returns a token pair.
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Extended: req.Extended,
		Meta:     clientMeta(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(result))
}

// refresh rotates a refresh token and returns a fresh pair.
func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: usecase.ErrRefreshTokenExpired, Status: http.StatusUnauthorized, Message: "refresh token expired"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusUnauthorized, Message: "account is not active"},
		}, http.StatusInternalServerError, "refresh failed")
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(result))
}

// logout revokes the presented refresh token. Missing or unknown tokens
// still return success so logout is idempotent.
func (h *AuthHandler) logout(c *gin.Context) {
	// The body is optional; logout without a token is still a success.
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.sessions.Logout(c.Request.Context(), req.RefreshToken, clientMeta(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// me returns the identity behind the presented access token.
func (h *AuthHandler) me(c *gin.Context) {
	identityID, ok := middleware.GetAuthenticatedIdentityID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	identity, err := h.sessions.CurrentIdentityByID(c.Request.Context(), identityID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusUnauthorized, Message: "account is not active"},
		}, http.StatusInternalServerError, "lookup failed")
		return
	}

	c.JSON(http.StatusOK, newIdentitySummary(*identity))
}

// changePassword verifies the current password and replaces it, revoking
// every outstanding session for the identity.
func (h *AuthHandler) changePassword(c *gin.Context) {
	identityID, ok := middleware.GetAuthenticatedIdentityID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	revoked, err := h.sessions.ChangePassword(c.Request.Context(), identityID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCurrentPasswordIncorrect, Status: http.StatusBadRequest, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet complexity requirements"},
			{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
		}, http.StatusInternalServerError, "password change failed")
		return
	}

	c.JSON(http.StatusOK, ChangePasswordResponse{
		Message:       "password changed",
		TokensRevoked: revoked,
	})
}
