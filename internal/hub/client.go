package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/config"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// Client is a thin JSON REST implementation of the API capability.
type Client struct {
	cfg  *config.HubConfig
	log  *log.Logger
	http *http.Client

	mu      sync.Mutex
	session *Session
}

func NewClient(cfg *config.HubConfig, logger *log.Logger) *Client {
	return &Client{
		cfg:  cfg,
		log:  logger,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type loginResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type hubDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmwareVersion"`
	SIAAccount      string `json:"siaAccount"`
	Online          bool   `json:"online"`
	ArmState        string `json:"armState"`
	BatteryLow      bool   `json:"batteryLow"`
	SignalLevel     int    `json:"signalLevel"`
}

type deviceDTO struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	RoomID         string                 `json:"roomId"`
	Online         bool                   `json:"online"`
	Tampered       bool                   `json:"tampered"`
	BatteryPercent int                    `json:"batteryPercent"`
	Temperature    float64                `json:"temperature"`
	SignalLevel    int                    `json:"signalLevel"`
	Model          map[string]interface{} `json:"model"`
}

type groupDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ArmState  string `json:"armState"`
	NightMode bool   `json:"nightMode"`
}

type roomDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) Login(ctx context.Context) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Msg: fmt.Sprintf("login request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Msg: fmt.Sprintf("login rejected with status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Msg: "login failed", StatusCode: resp.StatusCode}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &APIError{Msg: fmt.Sprintf("decoding login response: %v", err)}
	}

	session := &Session{Token: lr.Token, Expires: lr.Expires}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.log.Hub("Logged in, session valid until %s", session.Expires)
	return session, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Msg: fmt.Sprintf("encoding request: %v", err)}
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, rd)
	if err != nil {
		return &APIError{Msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.session != nil {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Msg: fmt.Sprintf("%s %s failed: %v", method, path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Msg: fmt.Sprintf("%s %s rejected with status %d", method, path, resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Msg: fmt.Sprintf("%s %s", method, path), StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Msg: fmt.Sprintf("decoding %s response: %v", path, err)}
		}
	}
	return nil
}

func (c *Client) GetHubs(ctx context.Context) ([]types.Hub, error) {
	var dtos []hubDTO
	if err := c.get(ctx, "/hubs", &dtos); err != nil {
		return nil, err
	}
	hubs := make([]types.Hub, 0, len(dtos))
	for _, d := range dtos {
		hubs = append(hubs, d.toHub())
	}
	return hubs, nil
}

func (c *Client) GetHub(ctx context.Context, hubID string) (*types.Hub, error) {
	var d hubDTO
	if err := c.get(ctx, "/hubs/"+hubID, &d); err != nil {
		return nil, err
	}
	h := d.toHub()
	return &h, nil
}

func (c *Client) GetDevices(ctx context.Context, hubID string) ([]types.Device, error) {
	var dtos []deviceDTO
	if err := c.get(ctx, "/hubs/"+hubID+"/devices", &dtos); err != nil {
		return nil, err
	}
	devices := make([]types.Device, 0, len(dtos))
	for _, d := range dtos {
		devices = append(devices, d.toDevice(hubID))
	}
	return devices, nil
}

func (c *Client) GetDevice(ctx context.Context, hubID, deviceID string) (*types.Device, error) {
	var d deviceDTO
	if err := c.get(ctx, "/hubs/"+hubID+"/devices/"+deviceID, &d); err != nil {
		return nil, err
	}
	dev := d.toDevice(hubID)
	return &dev, nil
}

func (c *Client) GetGroups(ctx context.Context, hubID string) ([]types.Group, error) {
	var dtos []groupDTO
	if err := c.get(ctx, "/hubs/"+hubID+"/groups", &dtos); err != nil {
		return nil, err
	}
	groups := make([]types.Group, 0, len(dtos))
	for _, d := range dtos {
		groups = append(groups, types.Group{
			ID:        d.ID,
			HubID:     hubID,
			Name:      d.Name,
			State:     parseArmState(d.ArmState),
			NightMode: d.NightMode,
		})
	}
	return groups, nil
}

func (c *Client) GetRooms(ctx context.Context, hubID string) ([]types.Room, error) {
	var dtos []roomDTO
	if err := c.get(ctx, "/hubs/"+hubID+"/rooms", &dtos); err != nil {
		return nil, err
	}
	rooms := make([]types.Room, 0, len(dtos))
	for _, d := range dtos {
		rooms = append(rooms, types.Room{ID: d.ID, Name: d.Name})
	}
	return rooms, nil
}

func (c *Client) SetHubArming(ctx context.Context, hubID string, cmd types.ArmCommand) error {
	return c.do(ctx, http.MethodPut, "/hubs/"+hubID+"/arm",
		map[string]string{"command": cmd.String()}, nil)
}

func (c *Client) SetGroupArming(ctx context.Context, hubID, groupID string, cmd types.ArmCommand) error {
	return c.do(ctx, http.MethodPut, "/hubs/"+hubID+"/groups/"+groupID+"/arm",
		map[string]string{"command": cmd.String()}, nil)
}

func (c *Client) SendDeviceCommand(ctx context.Context, hubID, deviceID, command, deviceType string) error {
	return c.do(ctx, http.MethodPost, "/hubs/"+hubID+"/devices/"+deviceID+"/command",
		map[string]string{"command": command, "deviceType": deviceType}, nil)
}

func (d hubDTO) toHub() types.Hub {
	return types.Hub{
		ID:              d.ID,
		Name:            d.Name,
		Model:           d.Model,
		FirmwareVersion: d.FirmwareVersion,
		SIAAccount:      d.SIAAccount,
		Online:          d.Online,
		Armed:           parseArmState(d.ArmState),
		BatteryLow:      d.BatteryLow,
		SignalLevel:     d.SignalLevel,
	}
}

func (d deviceDTO) toDevice(hubID string) types.Device {
	return types.Device{
		ID:             d.ID,
		HubID:          hubID,
		Name:           d.Name,
		Type:           d.Type,
		RoomID:         d.RoomID,
		Online:         d.Online,
		Tampered:       d.Tampered,
		BatteryPercent: d.BatteryPercent,
		Temperature:    d.Temperature,
		SignalLevel:    d.SignalLevel,
		Model:          types.DeviceModel(d.Model),
	}
}

func parseArmState(s string) types.ArmState {
	switch s {
	case "armed":
		return types.ArmStateArmed
	case "partially_armed", "night":
		return types.ArmStatePartiallyArmed
	default:
		return types.ArmStateDisarmed
	}
}
