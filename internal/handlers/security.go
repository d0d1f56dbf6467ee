package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/security"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// SecurityHandler exposes the deployment security audit to administrators.
type SecurityHandler struct {
	audit *security.AuditService
}

// NewSecurityHandler returns nil when no audit service is configured.
func NewSecurityHandler(audit *security.AuditService) *SecurityHandler {
	if audit == nil {
		return nil
	}
	return &SecurityHandler{audit: audit}
}

// Audit runs every check and returns the aggregated result.
func (h *SecurityHandler) Audit(c *gin.Context) {
	response.Success(c, http.StatusOK, h.audit.Run(requestContext(c)))
}
