package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// IdentitySummary describes the externally visible view of an identity.
// The password hash is never part of any response shape.
type IdentitySummary struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newIdentitySummary(identity domain.Identity) IdentitySummary {
	return IdentitySummary{
		ID:        identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		Role:      string(identity.Role),
		AvatarURL: identity.AvatarURL,
		IsActive:  identity.IsActive,
		LastLogin: identity.LastLogin,
		CreatedAt: identity.CreatedAt,
	}
}

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Extended bool   `json:"extended_session"`
}

// TokenPairResponse is the shape shared by login and refresh responses.
type TokenPairResponse struct {
	Identity     IdentitySummary `json:"identity"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
}

// RefreshRequest defines the payload for the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest defines the payload for the logout endpoint.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest defines the payload for the password change endpoint.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePasswordResponse reports how many sessions were revoked alongside the change.
type ChangePasswordResponse struct {
	Message       string `json:"message"`
	TokensRevoked int    `json:"tokens_revoked"`
}

// IdentityListResponse wraps the admin identity listing.
type IdentityListResponse struct {
	Identities []IdentitySummary `json:"identities"`
	Total      int               `json:"total"`
}

// CleanupResponse reports the result of a refresh token purge.
type CleanupResponse struct {
	Purged int `json:"purged"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes the readiness payload with per-dependency detail.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
