package config

import (
	"fmt"
	"time"

	"github.com/dronegrade/harness/internal/grade"
	"github.com/dronegrade/harness/internal/patrol"
	"github.com/dronegrade/harness/internal/transport"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "dronegrade.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty path keeps
// the database in memory.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// StorageConfig selects and configures the session recording backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
	Influx InfluxConfig `json:"influx" mapstructure:"influx"`
}

// GeoConfig georeferences the engine origin.
type GeoConfig struct {
	OriginLatitude  float64
	OriginLongitude float64
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level          string
	LogsDir        string
	GraylogEnabled bool
	GraylogAddress string
}

// VisionConfig holds the MQTT detection feed settings
type VisionConfig struct {
	Enabled     bool
	Broker      string
	MarkerTopic string
	ModelTopic  string
}

// TelemetryConfig holds the MQTT score publisher settings
type TelemetryConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
}

// APIConfig holds the status API settings
type APIConfig struct {
	Enabled bool
	Listen  string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
	BatchTimeout   time.Duration
	Endpoint       string
	Insecure       bool
}

// MonitorConfig holds the status monitor settings
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("transport.host", "127.0.0.1")
	viper.SetDefault("transport.port", 3001)
	viper.SetDefault("transport.bufferSize", transport.DefaultBufferSize)

	viper.SetDefault("drone.replyTimeout", "0s")

	viper.SetDefault("simulation.numOfPeople", 20)
	viper.SetDefault("simulation.sunAngle", 0)
	viper.SetDefault("simulation.addPointsForRecognition", 10)
	viper.SetDefault("simulation.decreasePointsPerSec", 1)
	viper.SetDefault("simulation.simulationTime", 60)
	viper.SetDefault("simulation.pointsDeductedForCollision", 50)
	viper.SetDefault("simulation.initialPoints", 100)
	viper.SetDefault("simulation.targetLabel", "person")
	viper.SetDefault("simulation.tickInterval", "10ms")
	viper.SetDefault("simulation.pollTimeout", "1s")
	viper.SetDefault("simulation.sendGradeToPeer", true)

	viper.SetDefault("vision.enabled", false)
	viper.SetDefault("vision.broker", "tcp://localhost:1883")
	viper.SetDefault("vision.markerTopic", "vision/aruco")
	viper.SetDefault("vision.modelTopic", "vision/yolo")

	viper.SetDefault("patrol.enabled", false)
	viper.SetDefault("patrol.speed", patrol.DefaultSpeed)
	viper.SetDefault("patrol.cameraDegrees", patrol.DefaultCameraDegrees)
	viper.SetDefault("patrol.loop", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dronegrade")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "dronegrade")
	viper.SetDefault("influx.bucket", "sessions")

	viper.SetDefault("geo.originLatitude", 0)
	viper.SetDefault("geo.originLongitude", 0)

	viper.SetDefault("telemetry.mqtt.enabled", false)
	viper.SetDefault("telemetry.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("telemetry.mqtt.topic", "dronegrade/score")
	viper.SetDefault("telemetry.mqtt.username", "")
	viper.SetDefault("telemetry.mqtt.password", "")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", "127.0.0.1:8089")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dronegrade")
	viper.SetDefault("otel.exportInterval", "10s")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "5s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetTransportConfig returns the UDP endpoint settings.
func GetTransportConfig() transport.Config {
	return transport.Config{
		Host:       viper.GetString("transport.host"),
		Port:       viper.GetInt("transport.port"),
		BufferSize: viper.GetInt("transport.bufferSize"),
	}
}

// GetSimulationConfig returns the scoring parameters.
func GetSimulationConfig() grade.Config {
	return grade.Config{
		Grading: core.Grading{
			InitialPoints:    viper.GetFloat64("simulation.initialPoints"),
			DecayPerSecond:   viper.GetFloat64("simulation.decreasePointsPerSec"),
			CollisionPenalty: viper.GetFloat64("simulation.pointsDeductedForCollision"),
			DetectionBonus:   viper.GetFloat64("simulation.addPointsForRecognition"),
			Duration:         time.Duration(viper.GetFloat64("simulation.simulationTime") * float64(time.Second)),
			TargetLabel:      viper.GetString("simulation.targetLabel"),
			NumOfPeople:      viper.GetInt("simulation.numOfPeople"),
			SunAngle:         viper.GetFloat64("simulation.sunAngle"),
		},
		TickInterval: viper.GetDuration("simulation.tickInterval"),
		PollTimeout:  viper.GetDuration("simulation.pollTimeout"),
		SendGrade:    viper.GetBool("simulation.sendGradeToPeer"),
	}
}

// GetPatrolConfig returns the waypoint route. Points with fewer than three
// components are rejected.
func GetPatrolConfig() (patrol.Config, error) {
	cfg := patrol.Config{
		Speed:         viper.GetFloat64("patrol.speed"),
		CameraDegrees: viper.GetFloat64("patrol.cameraDegrees"),
		Loop:          viper.GetBool("patrol.loop"),
	}

	var raw [][]float64
	if err := viper.UnmarshalKey("patrol.points", &raw); err != nil {
		return cfg, fmt.Errorf("reading patrol points: %w", err)
	}
	for i, p := range raw {
		if len(p) < 3 {
			return cfg, fmt.Errorf("patrol point %d: want [x, y, z], got %v", i, p)
		}
		cfg.Points = append(cfg.Points, core.Coordinate{X: p[0], Y: p[1], Z: p[2]})
	}
	return cfg, nil
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Influx: InfluxConfig{
			Protocol: viper.GetString("influx.protocol"),
			Host:     viper.GetString("influx.host"),
			Port:     viper.GetString("influx.port"),
			Token:    viper.GetString("influx.token"),
			Org:      viper.GetString("influx.org"),
			Bucket:   viper.GetString("influx.bucket"),
		},
	}
}

// GetGeoConfig returns the georeference of the engine origin.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLatitude:  viper.GetFloat64("geo.originLatitude"),
		OriginLongitude: viper.GetFloat64("geo.originLongitude"),
	}
}

// GetLoggingConfig returns the logger settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		LogsDir:        viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetVisionConfig returns the detection feed settings.
func GetVisionConfig() VisionConfig {
	return VisionConfig{
		Enabled:     viper.GetBool("vision.enabled"),
		Broker:      viper.GetString("vision.broker"),
		MarkerTopic: viper.GetString("vision.markerTopic"),
		ModelTopic:  viper.GetString("vision.modelTopic"),
	}
}

// GetTelemetryConfig returns the score publisher settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:  viper.GetBool("telemetry.mqtt.enabled"),
		Broker:   viper.GetString("telemetry.mqtt.broker"),
		Topic:    viper.GetString("telemetry.mqtt.topic"),
		Username: viper.GetString("telemetry.mqtt.username"),
		Password: viper.GetString("telemetry.mqtt.password"),
	}
}

// GetAPIConfig returns the status API settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled: viper.GetBool("api.enabled"),
		Listen:  viper.GetString("api.listen"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
