package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// Session is the authenticated state returned by Login.
type Session struct {
	Token   string
	Expires time.Time
}

// API is the upstream hub capability the coordinator polls and commands.
// Implementations must return an *AuthError for authentication failures so
// the coordinator can distinguish them from transient API errors.
type API interface {
	Login(ctx context.Context) (*Session, error)
	GetHubs(ctx context.Context) ([]types.Hub, error)
	GetHub(ctx context.Context, hubID string) (*types.Hub, error)
	GetDevices(ctx context.Context, hubID string) ([]types.Device, error)
	GetDevice(ctx context.Context, hubID, deviceID string) (*types.Device, error)
	GetGroups(ctx context.Context, hubID string) ([]types.Group, error)
	GetRooms(ctx context.Context, hubID string) ([]types.Room, error)
	SetHubArming(ctx context.Context, hubID string, cmd types.ArmCommand) error
	SetGroupArming(ctx context.Context, hubID, groupID string, cmd types.ArmCommand) error
	SendDeviceCommand(ctx context.Context, hubID, deviceID, command, deviceType string) error
}

// AuthError indicates the upstream rejected our credentials or session.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Msg)
}

// APIError is any non-authentication upstream failure.
type APIError struct {
	Msg        string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("api error: %s", e.Msg)
}

// IsAuthError reports whether err is (or wraps) an authentication failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
