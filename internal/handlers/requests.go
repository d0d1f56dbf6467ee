package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// RequestHandler exposes the mentorship request lifecycle.
type RequestHandler struct {
	requests *services.MentorshipRequestService
}

// NewRequestHandler constructs a mentorship request handler.
func NewRequestHandler(requests *services.MentorshipRequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

type createRequestPayload struct {
	MentorID string `json:"mentor_id" validate:"required"`
}

type respondRequestPayload struct {
	Status string `json:"status" validate:"required"`
}

// Create opens a request from the calling mentee to a mentor.
func (h *RequestHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload createRequestPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.requests.Create(requestContext(c), userID, payload.MentorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// Respond accepts or rejects a pending request addressed to the calling mentor.
func (h *RequestHandler) Respond(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload respondRequestPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.requests.Respond(requestContext(c), userID, c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// ListSent returns the caller's outgoing requests.
func (h *RequestHandler) ListSent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.requests.ListSent(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ListReceived returns requests addressed to the calling mentor.
func (h *RequestHandler) ListReceived(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.requests.ListReceived(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}
