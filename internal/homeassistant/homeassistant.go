package homeassistant

import (
	"fmt"

	"github.com/alarmbridge/sia2mqtt/internal/config"
	"github.com/alarmbridge/sia2mqtt/internal/coordinator"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/mqtt"
	"github.com/alarmbridge/sia2mqtt/internal/types"
	"github.com/alarmbridge/sia2mqtt/internal/util"
)

type HomeAssistant struct {
	config *config.HomeAssistantConfig
	mqtt   mqtt.MQTTClient
	coord  *coordinator.Coordinator
	log    *log.Logger
}

func New(cfg *config.HomeAssistantConfig, mqttClient mqtt.MQTTClient, coord *coordinator.Coordinator, logger *log.Logger) *HomeAssistant {
	return &HomeAssistant{
		config: cfg,
		mqtt:   mqttClient,
		coord:  coord,
		log:    logger,
	}
}

// Start publishes discovery configs for everything currently known. Call
// again after new devices appear; configs are idempotent and retained.
func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishDiscoveryConfig()
}

func (ha *HomeAssistant) publishDiscoveryConfig() {
	for _, hs := range ha.coord.Snapshot() {
		ha.publishHubConfig(hs.Hub)
		for _, g := range hs.Groups {
			ha.publishGroupConfig(g)
		}
		for _, d := range hs.Devices {
			ha.publishDeviceConfig(d)
		}
	}
}

func (ha *HomeAssistant) publishHubConfig(h types.Hub) {
	config := map[string]interface{}{
		"name":             h.Name,
		"unique_id":        fmt.Sprintf("%s_hub_%s", ha.mqtt.GetPrefix(), util.Slugify(h.Name)),
		"state_topic":      ha.mqtt.Topics().Hub(h),
		"command_topic":    ha.mqtt.Topics().HubCommand(h),
		"payload_disarm":   "disarm",
		"payload_arm_home": "night",
		"payload_arm_away": "arm",
		"value_template":   "{{ value_json.armed }}",
	}

	ha.publishConfig("alarm_control_panel", h.ID, config)
}

func (ha *HomeAssistant) publishGroupConfig(g types.Group) {
	config := map[string]interface{}{
		"name":             g.Name,
		"unique_id":        fmt.Sprintf("%s_group_%s", ha.mqtt.GetPrefix(), util.Slugify(g.Name)),
		"state_topic":      ha.mqtt.Topics().Group(g),
		"command_topic":    ha.mqtt.Topics().GroupCommand(g),
		"payload_disarm":   "disarm",
		"payload_arm_away": "arm",
		"value_template":   "{{ value_json.state }}",
	}

	ha.publishConfig("alarm_control_panel", g.ID, config)
}

func (ha *HomeAssistant) publishDeviceConfig(d types.Device) {
	config := map[string]interface{}{
		"name":           d.Name,
		"unique_id":      fmt.Sprintf("%s_device_%s", ha.mqtt.GetPrefix(), util.Slugify(d.Name)),
		"state_topic":    ha.mqtt.Topics().Device(d),
		"device_class":   getDeviceClass(d),
		"value_template": deviceValueTemplate(d),
		"payload_on":     "true",
		"payload_off":    "false",
	}

	ha.publishConfig("binary_sensor", d.ID, config)
}

func (ha *HomeAssistant) publishConfig(component, objectId string, config map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", ha.config.Prefix, component, ha.mqtt.GetPrefix(), objectId)

	ha.mqtt.Publish(topic, config, true)
}
