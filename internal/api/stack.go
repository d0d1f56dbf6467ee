package api

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/app"
	"github.com/charlesng35/mentorlink/internal/notifications"
	"github.com/charlesng35/mentorlink/internal/realtime"
	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/mail"
)

// Stack holds the domain services shared by the HTTP routes, the websocket gateway and the
// maintenance jobs.
type Stack struct {
	Messages      *services.MessageService
	Conversations *services.ConversationService
	Notifications *services.NotificationService
	Requests      *services.MentorshipRequestService
	Dispatcher    *notifications.Dispatcher
	Gateway       *realtime.Gateway
}

// StackOptions carries optional collaborators.
type StackOptions struct {
	// Relay fans realtime events out to other instances; nil keeps delivery process-local.
	Relay    realtime.Relay
	Registry realtime.ConnectionRegistry
	Mailer   mail.Mailer
}

// NewStack wires the services against db using the messaging and realtime settings in cfg.
func NewStack(db *gorm.DB, cfg *app.Config, opts StackOptions) (*Stack, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	messages, err := services.NewMessageService(db, services.WithMaxMessageLength(cfg.Messaging.MaxMessageLength))
	if err != nil {
		return nil, err
	}
	conversations, err := services.NewConversationService(db)
	if err != nil {
		return nil, err
	}
	notificationStore, err := services.NewNotificationService(db, services.WithNotificationLimit(cfg.Messaging.NotificationLimit))
	if err != nil {
		return nil, err
	}

	gatewayOpts := []realtime.Option{
		realtime.WithSendBuffer(cfg.Realtime.SendBuffer),
		realtime.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if opts.Relay != nil {
		gatewayOpts = append(gatewayOpts, realtime.WithRelay(opts.Relay))
	}
	gateway := realtime.NewGateway(opts.Registry, messages, gatewayOpts...)

	dispatcher, err := notifications.NewDispatcher(notificationStore, gateway, notifications.WithPushTimeout(cfg.Messaging.PushTimeout))
	if err != nil {
		return nil, err
	}

	var requestOpts []services.RequestServiceOption
	if opts.Mailer != nil {
		requestOpts = append(requestOpts, services.WithRequestMailer(opts.Mailer))
	}
	requests, err := services.NewMentorshipRequestService(db, dispatcher, requestOpts...)
	if err != nil {
		return nil, err
	}

	return &Stack{
		Messages:      messages,
		Conversations: conversations,
		Notifications: notificationStore,
		Requests:      requests,
		Dispatcher:    dispatcher,
		Gateway:       gateway,
	}, nil
}
