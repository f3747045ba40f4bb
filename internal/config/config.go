package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	SIA           SIAConfig           `yaml:"sia"`
	Hub           HubConfig           `yaml:"hub"`
	Polling       PollingConfig       `yaml:"polling"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Log           string              `yaml:"log"`
	Cache         bool                `yaml:"cache"`
}

type SIAConfig struct {
	Port               int    `yaml:"port"`
	Account            string `yaml:"account"`
	AESKey             string `yaml:"aes_key"`
	IdleTimeoutMinutes int    `yaml:"idle_timeout_minutes"`
}

type HubConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PollingConfig struct {
	ArmedIntervalSeconds    int  `yaml:"armed_interval"`
	DisarmedIntervalSeconds int  `yaml:"disarmed_interval"`
	FastPoll                bool `yaml:"fast_poll"`
	FastPollIntervalSeconds int  `yaml:"fast_poll_interval"`
	FullPollEvery           int  `yaml:"full_poll_every"`
}

type MQTTConfig struct {
	ClientID  string `yaml:"client_id"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Keepalive int    `yaml:"keepalive"`
	Password  string `yaml:"password"`
	QOS       int    `yaml:"qos"`
	Retain    bool   `yaml:"retain"`
	RetainLog bool   `yaml:"retain_log"`
	Username  string `yaml:"username"`
	Prefix    string `yaml:"prefix"`
	Clean     bool   `yaml:"clean"`
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Set default values
	if config.SIA.Port == 0 {
		config.SIA.Port = 8094
	}
	if config.SIA.IdleTimeoutMinutes == 0 {
		config.SIA.IdleTimeoutMinutes = 5
	}
	if config.Polling.ArmedIntervalSeconds == 0 {
		config.Polling.ArmedIntervalSeconds = 30
	}
	if config.Polling.DisarmedIntervalSeconds == 0 {
		config.Polling.DisarmedIntervalSeconds = 120
	}
	if config.Polling.FastPollIntervalSeconds == 0 {
		config.Polling.FastPollIntervalSeconds = 15
	}
	if config.Polling.FullPollEvery == 0 {
		config.Polling.FullPollEvery = 10
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "sia2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 60
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "sia2mqtt"
	}
	if config.HomeAssistant.Prefix == "" {
		config.HomeAssistant.Prefix = "homeassistant"
	}
	if config.Log == "" {
		config.Log = "info"
	}

	return &config, nil
}
