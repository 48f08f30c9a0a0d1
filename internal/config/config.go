// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// Sample sources understood by the fusion producer.
const (
	SourceMock   = "mock"
	SourceSerial = "serial"
	SourceReplay = "replay"
	SourceMQTT   = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicIMURaw     string // raw counts from an on-board IMU producer (input)
	TopicIMUSample  string // samples in physical units, republished by the fusion producer
	TopicQuaternion string // full estimate: quaternion + pose
	TopicPoseFused  string // pose only, for lightweight subscribers

	// Sample source
	SampleSource   string // mock, serial, replay or mqtt
	SerialPort     string
	SerialBaudRate int
	ReplayFile     string

	// Optional per-sensor corrections applied to every sample
	CalibrationFile string

	// IMU Sensor Ranges (used to scale raw counts)
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Filter
	FilterAlgorithm  string
	FilterSampleFreq float64 // Hz
	FilterBeta       float64
	FilterKp         float64
	FilterKi         float64
	FilterUseMag     bool

	// Mock source
	MockYawRate float64 // deg/s

	// Timing
	IMUSampleInterval  int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify it without locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration that runs the Madgwick filter on the mock
// source against a local broker. Load starts from these values.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "inertial-fusion-producer",
		MQTTClientIDConsole:  "inertial-fusion-console",
		MQTTClientIDWeb:      "inertial-fusion-web",

		TopicIMURaw:     "inertial/imu/left",
		TopicIMUSample:  "inertial/fusion/sample",
		TopicQuaternion: "inertial/fusion/quaternion",
		TopicPoseFused:  "inertial/pose/fused",

		SampleSource:   SourceMock,
		SerialBaudRate: 115200,

		IMUAccelRange: 0,
		IMUGyroRange:  0,

		FilterAlgorithm:  "madgwick",
		FilterSampleFreq: 100,
		FilterBeta:       0.1,
		FilterKp:         fusion.DefaultKp,
		FilterKi:         0.0,
		FilterUseMag:     true,

		MockYawRate: 30,

		IMUSampleInterval:  10,
		ConsoleLogInterval: 1000,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.fillClientIDs()

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_IMU_RAW":
		c.TopicIMURaw = value
	case "TOPIC_IMU_SAMPLE":
		c.TopicIMUSample = value
	case "TOPIC_QUATERNION":
		c.TopicQuaternion = value
	case "TOPIC_POSE_FUSED":
		c.TopicPoseFused = value

	// Sample source
	case "SAMPLE_SOURCE":
		switch strings.ToLower(value) {
		case SourceMock, SourceSerial, SourceReplay, SourceMQTT:
			c.SampleSource = strings.ToLower(value)
		default:
			return fmt.Errorf("SAMPLE_SOURCE must be one of mock, serial, replay, mqtt, got %q", value)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate
	case "REPLAY_FILE":
		c.ReplayFile = value
	case "CALIBRATION_FILE":
		c.CalibrationFile = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Filter
	case "FILTER_ALGORITHM":
		c.FilterAlgorithm = strings.ToLower(value)
	case "FILTER_SAMPLE_FREQ":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FILTER_SAMPLE_FREQ %q: %w", value, err)
		}
		c.FilterSampleFreq = hz
	case "FILTER_BETA":
		beta, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FILTER_BETA %q: %w", value, err)
		}
		c.FilterBeta = beta
	case "FILTER_KP":
		kp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FILTER_KP %q: %w", value, err)
		}
		c.FilterKp = kp
	case "FILTER_KI":
		ki, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid FILTER_KI %q: %w", value, err)
		}
		c.FilterKi = ki
	case "FILTER_USE_MAG":
		useMag, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid FILTER_USE_MAG %q: %w", value, err)
		}
		c.FilterUseMag = useMag

	// Mock source
	case "MOCK_YAW_RATE":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MOCK_YAW_RATE %q: %w", value, err)
		}
		c.MockYawRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if err := c.Fusion().Validate(); err != nil {
		return fmt.Errorf("invalid filter settings: %w", err)
	}
	if c.SampleSource == SourceSerial && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when SAMPLE_SOURCE=serial")
	}
	if c.SampleSource == SourceSerial && c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	if c.SampleSource == SourceReplay && c.ReplayFile == "" {
		return fmt.Errorf("REPLAY_FILE is required when SAMPLE_SOURCE=replay")
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive, got %d", c.IMUSampleInterval)
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive, got %d", c.ConsoleLogInterval)
	}
	return nil
}

// fillClientIDs gives every empty MQTT client ID a unique value so several
// instances can share one broker.
func (c *Config) fillClientIDs() {
	for _, id := range []*string{&c.MQTTClientIDProducer, &c.MQTTClientIDConsole, &c.MQTTClientIDWeb} {
		if *id == "" {
			*id = "inertial-fusion-" + uuid.NewString()
		}
	}
}

// Fusion returns the filter settings.
func (c *Config) Fusion() fusion.Config {
	return fusion.Config{
		Algorithm:  fusion.Algorithm(c.FilterAlgorithm),
		SampleFreq: c.FilterSampleFreq,
		Beta:       c.FilterBeta,
		Kp:         c.FilterKp,
		Ki:         c.FilterKi,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
