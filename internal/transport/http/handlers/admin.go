package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/usecase"
)

// AdminHandler exposes identity administration endpoints. Routes registered
// through it are expected to sit behind authentication plus an Admin role
// check.
type AdminHandler struct {
	identities *usecase.IdentityService
	sessions   *usecase.SessionService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(identities *usecase.IdentityService, sessions *usecase.SessionService) *AdminHandler {
	return &AdminHandler{identities: identities, sessions: sessions}
}

// RegisterRoutes binds identity administration routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/identities", h.list)
	r.GET("/identities/:id", h.get)
	r.PATCH("/identities/:id/deactivate", h.deactivate)
	r.PATCH("/identities/:id/reactivate", h.reactivate)
	r.POST("/tokens/cleanup", h.cleanup)
}

var identityErrorCases = []ErrorCase{
	{Err: usecase.ErrIdentityNotFound, Status: http.StatusNotFound, Message: "identity not found"},
}

func (h *AdminHandler) list(c *gin.Context) {
	identities, err := h.identities.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "listing failed"))
		return
	}

	summaries := make([]IdentitySummary, 0, len(identities))
	for _, identity := range identities {
		summaries = append(summaries, newIdentitySummary(identity))
	}

	c.JSON(http.StatusOK, IdentityListResponse{
		Identities: summaries,
		Total:      len(summaries),
	})
}

func (h *AdminHandler) get(c *gin.Context) {
	identity, err := h.identities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, "lookup failed")
		return
	}

	c.JSON(http.StatusOK, newIdentitySummary(*identity))
}

func (h *AdminHandler) deactivate(c *gin.Context) {
	if err := h.identities.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, "deactivation failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "identity deactivated"})
}

func (h *AdminHandler) reactivate(c *gin.Context) {
	if err := h.identities.Reactivate(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, "reactivation failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "identity reactivated"})
}

func (h *AdminHandler) cleanup(c *gin.Context) {
	purged, err := h.sessions.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "cleanup failed"))
		return
	}

	c.JSON(http.StatusOK, CleanupResponse{Purged: purged})
}
