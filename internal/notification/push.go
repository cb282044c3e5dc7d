package notification

import (
	"context"

	authdomain "taskflow-backend/internal/auth/domain"
	"taskflow-backend/pkg/fcm"

	"go.uber.org/zap"
)

// Sender delivers a message to device tokens and returns the tokens that failed
type Sender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

// DeviceStore is the push device registry
type DeviceStore interface {
	ListByOwner(userID string) ([]authdomain.Device, error)
	Remove(token string) error
}

// PushNotifier sends push notifications to every device of an owner
type PushNotifier struct {
	sender  Sender
	devices DeviceStore
	logger  *zap.Logger
}

func NewPushNotifier(sender Sender, devices DeviceStore, logger *zap.Logger) *PushNotifier {
	return &PushNotifier{sender: sender, devices: devices, logger: logger.Named("push")}
}

// Push sends n to the owner's devices and forgets tokens the provider rejected
func (p *PushNotifier) Push(ctx context.Context, userID string, n fcm.NotificationData) error {
	registered, err := p.devices.ListByOwner(userID)
	if err != nil {
		return err
	}
	if len(registered) == 0 {
		p.logger.Debug("no devices registered", zap.String("owner_id", userID))
		return nil
	}

	tokens := make([]string, 0, len(registered))
	for _, d := range registered {
		tokens = append(tokens, d.Token)
	}

	failed, err := p.sender.SendToDevices(ctx, tokens, n)
	if err != nil {
		return err
	}
	for _, token := range failed {
		if err := p.devices.Remove(token); err != nil {
			p.logger.Warn("prune failed token", zap.Error(err))
		}
	}
	p.logger.Debug("push sent", zap.String("owner_id", userID), zap.Int("devices", len(tokens)-len(failed)))
	return nil
}
