package config

import (
	"log/slog"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "HTTP_MAX_CONNS", "HTTP_RATE", "HTTP_BURST",
	"HARDWARE_BACKEND", "SENSOR_I2C_BUS", "DISPLAY_I2C_BUS", "BMP280_ADDRESS", "AHT20_ADDRESS",
	"MATRIX_SPI_PORT", "BUTTON_A_PIN", "BUTTON_B_PIN", "BUZZER_PIN",
	"LED_RED_PIN", "LED_GREEN_PIN", "LED_BLUE_PIN", "NET_INTERFACE",
	"THRESHOLD_PROFILE", "SAMPLE_INTERVAL", "LOOP_INTERVAL", "ALERT_COOLDOWN", "DEBOUNCE_INTERVAL",
	"CALIBRATION_ENABLED", "DEVICE_STATION_ID", "MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID",
	"HISTORY_ENABLED", "HISTORY_DSN", "HISTORY_MAX_ROWS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":80" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":80")
	}
	if got.HTTPMaxConns != 8 {
		t.Errorf("HTTPMaxConns = %d, want 8", got.HTTPMaxConns)
	}
	if got.HardwareBackend != BackendPeriph {
		t.Errorf("HardwareBackend = %q, want %q", got.HardwareBackend, BackendPeriph)
	}
	if got.BMP280Address != 0x76 || got.AHT20Address != 0x38 {
		t.Errorf("addresses = %#x %#x, want 0x76 0x38", got.BMP280Address, got.AHT20Address)
	}
	if got.SampleInterval != time.Second || got.LoopInterval != 50*time.Millisecond {
		t.Errorf("intervals = %v %v, want 1s 50ms", got.SampleInterval, got.LoopInterval)
	}
	if got.AlertCooldown != 5*time.Second || got.DebounceInterval != 200*time.Millisecond {
		t.Errorf("cooldown/debounce = %v %v, want 5s 200ms", got.AlertCooldown, got.DebounceInterval)
	}
	if got.ThresholdProfile != "wide" {
		t.Errorf("ThresholdProfile = %q, want wide", got.ThresholdProfile)
	}
	if !got.CalibrationEnabled {
		t.Error("CalibrationEnabled = false, want true by default")
	}
	if got.MQTTEnabled {
		t.Error("MQTTEnabled = true, want false by default")
	}
	if !got.HistoryEnabled || got.HistoryMaxRows != 3600 {
		t.Errorf("history = %v/%d, want true/3600", got.HistoryEnabled, got.HistoryMaxRows)
	}
	if got.Pins.ButtonA != "GPIO5" || got.Pins.ButtonB != "GPIO6" {
		t.Errorf("button pins = %q %q", got.Pins.ButtonA, got.Pins.ButtonB)
	}
}

func TestLoadFromEnv_AppEnv_Invalid(t *testing.T) {
	for _, v := range []string{"staging", "DEV", "qa"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", v)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", " prod ")
	t.Setenv("HTTP_ADDR", "127.0.0.1:8081")
	t.Setenv("HARDWARE_BACKEND", "SIM")
	t.Setenv("BMP280_ADDRESS", "0x77")
	t.Setenv("THRESHOLD_PROFILE", "narrow")
	t.Setenv("ALERT_COOLDOWN", "10s")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_PORT", "1884")
	t.Setenv("DEVICE_STATION_ID", "attic")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.AppEnv != "prod" {
		t.Errorf("AppEnv = %q, want prod", got.AppEnv)
	}
	if got.HTTPPort() != 8081 {
		t.Errorf("HTTPPort() = %d, want 8081", got.HTTPPort())
	}
	if got.HardwareBackend != BackendSim {
		t.Errorf("HardwareBackend = %q, want sim", got.HardwareBackend)
	}
	if got.BMP280Address != 0x77 {
		t.Errorf("BMP280Address = %#x, want 0x77", got.BMP280Address)
	}
	if got.ThresholdProfile != "narrow" || got.AlertCooldown != 10*time.Second {
		t.Errorf("profile/cooldown = %q/%v", got.ThresholdProfile, got.AlertCooldown)
	}
	if !got.MQTTEnabled || got.MQTTPort != 1884 || got.DeviceStationID != "attic" {
		t.Errorf("mqtt = %v/%d/%q", got.MQTTEnabled, got.MQTTPort, got.DeviceStationID)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "max conns zero", key: "HTTP_MAX_CONNS", val: "0"},
		{name: "rate negative", key: "HTTP_RATE", val: "-1"},
		{name: "rate garbage", key: "HTTP_RATE", val: "fast"},
		{name: "unknown backend", key: "HARDWARE_BACKEND", val: "gpiod"},
		{name: "address too wide", key: "BMP280_ADDRESS", val: "0x1ff"},
		{name: "address garbage", key: "AHT20_ADDRESS", val: "zz"},
		{name: "unknown profile", key: "THRESHOLD_PROFILE", val: "tropical"},
		{name: "sample interval garbage", key: "SAMPLE_INTERVAL", val: "soon"},
		{name: "loop slower than sample", key: "LOOP_INTERVAL", val: "2s"},
		{name: "cooldown negative", key: "ALERT_COOLDOWN", val: "-5s"},
		{name: "calibration flag garbage", key: "CALIBRATION_ENABLED", val: "sometimes"},
		{name: "mqtt enabled garbage", key: "MQTT_ENABLED", val: "maybe"},
		{name: "mqtt port garbage", key: "MQTT_PORT", val: "eighteen"},
		{name: "history rows zero", key: "HISTORY_MAX_ROWS", val: "0"},
		{name: "log level", key: "LOG_LEVEL", val: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.val)
			}
		})
	}
}

func TestHTTPPort(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{":80", 80},
		{"0.0.0.0:8080", 8080},
		{"localhost", 0},
		{":http", 0},
	}
	for _, tt := range tests {
		if got := (Config{HTTPAddr: tt.addr}).HTTPPort(); got != tt.want {
			t.Errorf("HTTPPort(%q) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "  ERROR \n", want: slog.LevelError},
		{in: "", want: slog.LevelInfo, wantErr: true},
		{in: "warns", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
