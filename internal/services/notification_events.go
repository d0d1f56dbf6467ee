package services

import (
	"fmt"
	"strings"

	"github.com/charlesng35/mentorlink/internal/models"
)

// Deep links understood by the web client.
const (
	linkMentorRequests = "/mentor/requests"
	linkMyRequests     = "/my-requests"
)

// NewRequestReceivedNotification tells a mentor a mentee asked for mentorship.
func NewRequestReceivedNotification(request *models.MentorshipRequest, mentee *models.User) CreateNotificationInput {
	return CreateNotificationInput{
		UserID:   request.MentorID,
		Kind:     NotificationKindRequestReceived,
		Message:  fmt.Sprintf("You have a new mentorship request from %s.", mentee.Name),
		Link:     linkMentorRequests,
		Metadata: map[string]any{"request_id": request.ID, "mentee_id": mentee.ID},
	}
}

// NewRequestRespondedNotification tells a mentee their request was accepted or rejected.
func NewRequestRespondedNotification(request *models.MentorshipRequest, mentor *models.User) CreateNotificationInput {
	kind := NotificationKindRequestRejected
	if request.Status == models.RequestAccepted {
		kind = NotificationKindRequestAccepted
	}
	return CreateNotificationInput{
		UserID:   request.MenteeID,
		Kind:     kind,
		Message:  fmt.Sprintf("Your request to %s has been %s.", mentor.Name, strings.ToLower(request.Status)),
		Link:     linkMyRequests,
		Metadata: map[string]any{"request_id": request.ID, "mentor_id": mentor.ID, "status": request.Status},
	}
}
