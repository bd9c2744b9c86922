package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

// Pins names every GPIO the station drives, as known to gpioreg.
type Pins struct {
	ButtonA  string
	ButtonB  string
	Buzzer   string
	LEDRed   string
	LEDGreen string
	LEDBlue  string
}

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	HTTPAddr     string
	HTTPMaxConns int
	HTTPRate     float64
	HTTPBurst    int

	HardwareBackend string
	SensorI2CBus    string
	DisplayI2CBus   string
	BMP280Address   uint16
	AHT20Address    uint16
	MatrixSPIPort   string
	Pins            Pins
	NetInterface    string

	ThresholdProfile string
	SampleInterval   time.Duration
	LoopInterval     time.Duration
	AlertCooldown    time.Duration
	DebounceInterval time.Duration

	// CalibrationEnabled exposes /set_config. Without it the path serves the
	// status page like any other.
	CalibrationEnabled bool

	DeviceStationID string

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	HistoryEnabled bool
	HistoryDSN     string
	HistoryMaxRows int
}

// LoadFromEnv reads the configuration from the environment, after loading an
// optional .env file from the working directory. Variables already set in the
// environment win over the file.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":80")

	httpMaxConns, err := positiveInt("HTTP_MAX_CONNS", "8")
	if err != nil {
		return Config{}, err
	}

	httpRateStr := envOr("HTTP_RATE", "5")
	httpRate, err := strconv.ParseFloat(httpRateStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_RATE %q: %w", httpRateStr, err)
	}
	if httpRate <= 0 {
		return Config{}, fmt.Errorf("HTTP_RATE must be positive, got %v", httpRate)
	}

	httpBurst, err := positiveInt("HTTP_BURST", "10")
	if err != nil {
		return Config{}, err
	}

	backend := strings.ToLower(envOr("HARDWARE_BACKEND", BackendPeriph))
	switch backend {
	case BackendPeriph, BackendSim:
	default:
		return Config{}, fmt.Errorf("invalid HARDWARE_BACKEND %q (allowed: %s, %s)", backend, BackendPeriph, BackendSim)
	}

	bmp280Address, err := i2cAddress("BMP280_ADDRESS", "0x76")
	if err != nil {
		return Config{}, err
	}
	aht20Address, err := i2cAddress("AHT20_ADDRESS", "0x38")
	if err != nil {
		return Config{}, err
	}

	profile := strings.ToLower(envOr("THRESHOLD_PROFILE", "wide"))
	switch profile {
	case "wide", "narrow":
	default:
		return Config{}, fmt.Errorf("invalid THRESHOLD_PROFILE %q (allowed: wide, narrow)", profile)
	}

	sampleInterval, err := positiveDuration("SAMPLE_INTERVAL", "1s")
	if err != nil {
		return Config{}, err
	}
	loopInterval, err := positiveDuration("LOOP_INTERVAL", "50ms")
	if err != nil {
		return Config{}, err
	}
	if loopInterval > sampleInterval {
		return Config{}, fmt.Errorf("LOOP_INTERVAL %v must not exceed SAMPLE_INTERVAL %v", loopInterval, sampleInterval)
	}
	alertCooldown, err := positiveDuration("ALERT_COOLDOWN", "5s")
	if err != nil {
		return Config{}, err
	}
	debounceInterval, err := positiveDuration("DEBOUNCE_INTERVAL", "200ms")
	if err != nil {
		return Config{}, err
	}

	calibrationEnabled, err := boolEnv("CALIBRATION_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := boolEnv("MQTT_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := envOr("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	historyEnabled, err := boolEnv("HISTORY_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}
	historyMaxRows, err := positiveInt("HISTORY_MAX_ROWS", "3600")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:       appEnv,
		LogLevel:     level,
		HTTPAddr:     httpAddr,
		HTTPMaxConns: httpMaxConns,
		HTTPRate:     httpRate,
		HTTPBurst:    httpBurst,

		HardwareBackend: backend,
		SensorI2CBus:    envOr("SENSOR_I2C_BUS", ""),
		DisplayI2CBus:   envOr("DISPLAY_I2C_BUS", ""),
		BMP280Address:   bmp280Address,
		AHT20Address:    aht20Address,
		MatrixSPIPort:   envOr("MATRIX_SPI_PORT", ""),
		Pins: Pins{
			ButtonA:  envOr("BUTTON_A_PIN", "GPIO5"),
			ButtonB:  envOr("BUTTON_B_PIN", "GPIO6"),
			Buzzer:   envOr("BUZZER_PIN", "GPIO12"),
			LEDRed:   envOr("LED_RED_PIN", "GPIO13"),
			LEDGreen: envOr("LED_GREEN_PIN", "GPIO16"),
			LEDBlue:  envOr("LED_BLUE_PIN", "GPIO26"),
		},
		NetInterface: envOr("NET_INTERFACE", ""),

		ThresholdProfile: profile,
		SampleInterval:   sampleInterval,
		LoopInterval:     loopInterval,
		AlertCooldown:    alertCooldown,
		DebounceInterval: debounceInterval,

		CalibrationEnabled: calibrationEnabled,

		DeviceStationID: envOr("DEVICE_STATION_ID", "home"),

		MQTTEnabled:  mqttEnabled,
		MQTTBroker:   envOr("MQTT_BROKER", "localhost"),
		MQTTPort:     mqttPort,
		MQTTClientID: envOr("MQTT_CLIENT_ID", "cloudpico-station"),

		HistoryEnabled: historyEnabled,
		HistoryDSN:     envOr("HISTORY_DSN", "file:history?mode=memory&cache=shared"),
		HistoryMaxRows: historyMaxRows,
	}, nil
}

// HTTPPort returns the numeric port of HTTPAddr, or 0 when it has none.
func (c Config) HTTPPort() int {
	i := strings.LastIndex(c.HTTPAddr, ":")
	if i < 0 {
		return 0
	}
	p, err := strconv.Atoi(c.HTTPAddr[i+1:])
	if err != nil {
		return 0
	}
	return p
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func positiveInt(key, def string) (int, error) {
	s := envOr(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func positiveDuration(key, def string) (time.Duration, error) {
	s := envOr(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func boolEnv(key, def string) (bool, error) {
	s := envOr(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func i2cAddress(key, def string) (uint16, error) {
	s := envOr(key, def)
	addr, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s %q is not a 7-bit i2c address", key, s)
	}
	return uint16(addr), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
