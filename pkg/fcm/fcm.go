package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
	logger          *zap.Logger
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log := logger.Named("fcm")
	log.Info("client initialized")
	return &Client{messagingClient: messagingClient, logger: log}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title       string
	Body        string
	Data        map[string]string
	ClickAction string // path opened when the notification is clicked
}

func buildMulticast(tokens []string, n NotificationData) *messaging.MulticastMessage {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if n.ClickAction != "" {
		data["click_action"] = n.ClickAction
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}
	if n.ClickAction != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.ClickAction}
	}
	return msg
}

// SendToDevices sends a push notification to multiple device tokens.
// It returns the tokens that failed so callers can prune them.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, buildMulticast(tokens, notification))
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	c.logger.Debug("multicast sent", zap.Int("success", response.SuccessCount), zap.Int("failure", response.FailureCount))

	var failedTokens []string
	for i, resp := range response.Responses {
		if !resp.Success {
			failedTokens = append(failedTokens, tokens[i])
			c.logger.Warn("failed to deliver to device", zap.String("token_prefix", prefix(tokens[i])), zap.Error(resp.Error))
		}
	}

	return failedTokens, nil
}

func prefix(token string) string {
	if len(token) > 12 {
		return token[:12] + "..."
	}
	return token
}
