package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/cache"
	"github.com/alarmbridge/sia2mqtt/internal/config"
	"github.com/alarmbridge/sia2mqtt/internal/coordinator"
	"github.com/alarmbridge/sia2mqtt/internal/homeassistant"
	"github.com/alarmbridge/sia2mqtt/internal/hub"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/mqtt"
	"github.com/alarmbridge/sia2mqtt/internal/sia"
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Create hub API client and coordinator
	client := hub.NewClient(&cfg.Hub, logger)
	coord := coordinator.New(client, coordinator.PolicyFromConfig(&cfg.Polling), coordinator.NewScheduler(), logger)

	// Create MQTT client
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, coord, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Login to hub API
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := client.Login(ctx); err != nil {
		cancel()
		logger.Error("Failed to login to hub API: %v", err)
		os.Exit(1)
	}
	cancel()

	// Load cache if enabled
	if cfg.Cache {
		cacheData, err := cache.LoadCache()
		if err != nil {
			logger.Warning("Failed to load cache: %v", err)
		} else if cacheData != nil {
			coord.SetSnapshot(cacheData.Hubs)
			logger.Info("Loaded data from cache")
		}
	}

	// Start polling
	coord.Start()

	// Start SIA receiver
	server := sia.NewServer(&cfg.SIA, logger)
	if err := server.Start(); err != nil {
		logger.Error("Failed to start SIA receiver: %v", err)
		coord.Stop()
		os.Exit(1)
	}

	// Connect to MQTT broker
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		server.Stop()
		coord.Stop()
		os.Exit(1)
	}
	go mqttClient.Run(server)

	// Initialize and start Home Assistant integration if enabled
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(&cfg.HomeAssistant, mqttClient, coord, logger)
		ha.Start()
	}

	// Wait for termination signal
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	server.Stop()
	coord.Stop()

	// Save cache if enabled
	if cfg.Cache {
		if err := cache.SaveCache(coord.Snapshot()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		} else {
			logger.Info("Saved data to cache")
		}
	}

	mqttClient.Close()
}
