package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/alarmbridge/sia2mqtt/internal/config"
	"github.com/alarmbridge/sia2mqtt/internal/coordinator"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/sia"
	"github.com/alarmbridge/sia2mqtt/internal/types"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"
)

type MQTT struct {
	config *config.MQTTConfig
	coord  *coordinator.Coordinator
	log    *log.Logger
	client mqtt.Client
	topics *Topics
}

func NewMQTT(cfg *config.MQTTConfig, coord *coordinator.Coordinator, logger *log.Logger) *MQTT {
	return &MQTT{
		config: cfg,
		coord:  coord,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
	}
}

func (m *MQTT) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.config.Host, m.config.Port))
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(time.Duration(m.config.Keepalive) * time.Second)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), m.config.Retain)

	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

// Run consumes the coordinator and SIA server notification channels and
// republishes them. Blocks until the channels are drained; call in a
// goroutine.
func (m *MQTT) Run(server *sia.Server) {
	for {
		select {
		case ch, ok := <-m.coord.HubChanges():
			if !ok {
				return
			}
			m.PublishHubStatus(ch.Hub)
			m.subscribeHubCommand(ch.Hub)
		case ch, ok := <-m.coord.DeviceChanges():
			if !ok {
				return
			}
			m.PublishDeviceStatus(ch.Device)
		case ch, ok := <-m.coord.GroupChanges():
			if !ok {
				return
			}
			m.PublishGroupStatus(ch.Group)
			m.subscribeGroupCommand(ch.Group)
		case err, ok := <-m.coord.Unavailable():
			if !ok {
				return
			}
			m.publish(m.topics.Status(), "unavailable", true)
			m.log.Warning("Hub API unavailable: %v", err)
		case ev, ok := <-server.Alarms():
			if !ok {
				return
			}
			m.coord.HandleAlarm(ev)
			m.PublishAlarmEvent(ev)
		case t, ok := <-server.Heartbeats():
			if !ok {
				return
			}
			m.publish(m.topics.Heartbeat(), t.Format(time.RFC3339), false)
		}
	}
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publish(m.topics.Status(), onlinePayload, true)
	for _, hs := range m.coord.Snapshot() {
		m.PublishHubStatus(hs.Hub)
		m.subscribeHubCommand(hs.Hub)
		for _, d := range hs.Devices {
			m.PublishDeviceStatus(d)
		}
		for _, g := range hs.Groups {
			m.PublishGroupStatus(g)
			m.subscribeGroupCommand(g)
		}
	}
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

func (m *MQTT) subscribeHubCommand(h types.Hub) {
	topic := m.topics.HubCommand(h)
	hubID := h.ID
	token := m.client.Subscribe(topic, byte(m.config.QOS), func(client mqtt.Client, msg mqtt.Message) {
		m.handleArmCommand(hubID, "", string(msg.Payload()))
	})
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	}
}

func (m *MQTT) subscribeGroupCommand(g types.Group) {
	topic := m.topics.GroupCommand(g)
	hubID, groupID := g.HubID, g.ID
	token := m.client.Subscribe(topic, byte(m.config.QOS), func(client mqtt.Client, msg mqtt.Message) {
		m.handleArmCommand(hubID, groupID, string(msg.Payload()))
	})
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	}
}

func (m *MQTT) handleArmCommand(hubID, groupID, payload string) {
	var cmd types.ArmCommand
	switch payload {
	case "arm", "arm_away":
		cmd = types.ArmCommandArm
	case "disarm":
		cmd = types.ArmCommandDisarm
	case "night", "arm_night", "arm_home":
		cmd = types.ArmCommandNight
	default:
		m.log.Warning("Unknown arm command: %s", payload)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if groupID == "" {
		err = m.coord.Arm(ctx, hubID, cmd)
	} else {
		err = m.coord.ArmGroup(ctx, hubID, groupID, cmd)
	}
	if err != nil {
		m.log.Error("Arm command failed: %v", err)
	}
}

func (m *MQTT) PublishHubStatus(h types.Hub) {
	status := map[string]interface{}{
		"id":           h.ID,
		"name":         h.Name,
		"online":       h.Online,
		"armed":        h.Armed.String(),
		"battery_low":  h.BatteryLow,
		"signal_level": h.SignalLevel,
	}
	m.publish(m.topics.Hub(h), status, true)
}

func (m *MQTT) PublishDeviceStatus(d types.Device) {
	status := map[string]interface{}{
		"id":       d.ID,
		"name":     d.Name,
		"type":     d.Type,
		"room":     d.RoomName,
		"online":   d.Online,
		"tampered": d.Tampered,
		"battery":  d.BatteryPercent,
		"model":    d.Model,
	}
	m.publish(m.topics.Device(d), status, true)
}

func (m *MQTT) PublishGroupStatus(g types.Group) {
	status := map[string]interface{}{
		"id":         g.ID,
		"name":       g.Name,
		"state":      g.State.String(),
		"night_mode": g.NightMode,
	}
	m.publish(m.topics.Group(g), status, true)
}

func (m *MQTT) PublishAlarmEvent(ev types.AlarmEvent) {
	payload := map[string]interface{}{
		"account":     ev.Account,
		"type":        ev.Type.String(),
		"category":    ev.Category.String(),
		"code":        ev.Code,
		"description": ev.Description,
		"partition":   ev.Partition,
		"zone":        ev.Zone,
		"restore":     ev.Restore,
		"timestamp":   ev.Timestamp.Format(time.RFC3339),
	}
	m.publish(m.topics.Event(), payload, m.config.RetainLog)
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

func (m *MQTT) Publish(topic string, payload interface{}, retain bool) {
	m.publish(topic, payload, retain)
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) {
	payload, err := json.Marshal(message)
	if err != nil {
		m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
		return
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
