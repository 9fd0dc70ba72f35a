package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort    string `yaml:"httpPort"`
	CORSOrigins string `yaml:"corsOrigins"`
	LogLevel    string `yaml:"logLevel"`
	LogJSON     bool   `yaml:"logJSON"`
	Environment string `yaml:"environment"`

	// Detection mode override: auto, live, simulated.
	OverrideMode string `yaml:"overrideMode"`

	// Camera probe settings.
	CameraDevice       string        `yaml:"cameraDevice"`
	CameraProbeTimeout time.Duration `yaml:"cameraProbeTimeout"`

	// Vision inference sidecar.
	VisionServiceURL    string        `yaml:"visionServiceURL"`
	VisionStreamURL     string        `yaml:"visionStreamURL"`
	VisionProbeTimeout  time.Duration `yaml:"visionProbeTimeout"`
	VisionFrameInterval time.Duration `yaml:"visionFrameInterval"`

	// Simulated detection.
	SimulatedTick time.Duration `yaml:"simulatedTick"`
	SimulatedSeed int64         `yaml:"simulatedSeed"`

	// Alerting thresholds (frames = consecutive events).
	DrowsyFrames  int           `yaml:"drowsyFrames"`
	YawnFrames    int           `yaml:"yawnFrames"`
	AlertCooldown time.Duration `yaml:"alertCooldown"`

	DBHost     string `yaml:"dbHost"`
	DBPort     string `yaml:"dbPort"`
	DBUser     string `yaml:"dbUser"`
	DBPassword string `yaml:"dbPassword"`
	DBName     string `yaml:"dbName"`
	DBSSLMode  string `yaml:"dbSSLMode"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	CacheEnabled  bool   `yaml:"cacheEnabled"`
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DSNForLog returns the DSN with the password masked, safe for logging.
func (c *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// LoadConfig builds configuration from an optional YAML file plus
// environment variables. Environment always wins so a deploy can tweak a
// single knob without editing the file. A .env file is honored when present.
func LoadConfig(path string) *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("DROWSISENSE_CONFIG")
	}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				log.Printf("Failed to parse config file %s: %v", path, err)
			}
		} else {
			log.Printf("Config file %s not readable: %v", path, err)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.CORSOrigins = getEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogJSON = getEnvBool("LOG_JSON", cfg.LogJSON)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.OverrideMode = getEnv("OVERRIDE_MODE", cfg.OverrideMode)
	cfg.CameraDevice = getEnv("CAMERA_DEVICE", cfg.CameraDevice)
	cfg.CameraProbeTimeout = getEnvDuration("CAMERA_PROBE_TIMEOUT", cfg.CameraProbeTimeout)

	cfg.VisionServiceURL = getEnv("VISION_SERVICE_URL", cfg.VisionServiceURL)
	cfg.VisionStreamURL = getEnv("VISION_STREAM_URL", cfg.VisionStreamURL)
	cfg.VisionProbeTimeout = getEnvDuration("VISION_PROBE_TIMEOUT", cfg.VisionProbeTimeout)
	cfg.VisionFrameInterval = getEnvDuration("VISION_FRAME_INTERVAL", cfg.VisionFrameInterval)

	cfg.SimulatedTick = getEnvDuration("SIMULATED_TICK", cfg.SimulatedTick)
	cfg.SimulatedSeed = getEnvInt64("SIMULATED_SEED", cfg.SimulatedSeed)

	cfg.DrowsyFrames = getEnvInt("DROWSY_FRAMES", cfg.DrowsyFrames)
	cfg.YawnFrames = getEnvInt("YAWN_FRAMES", cfg.YawnFrames)
	cfg.AlertCooldown = getEnvDuration("ALERT_COOLDOWN", cfg.AlertCooldown)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheEnabled = getEnvBool("CACHE_ENABLED", cfg.CacheEnabled)

	if cfg.DBPassword == "" {
		fmt.Println("WARNING: DB_PASSWORD is not set!")
	}

	return cfg
}

func defaultConfig() *Config {
	return &Config{
		HTTPPort:    "8081",
		CORSOrigins: "*",
		LogLevel:    "INFO",
		Environment: "production",

		OverrideMode:       "auto",
		CameraDevice:       "/dev/video0",
		CameraProbeTimeout: 3 * time.Second,

		VisionServiceURL:    "localhost:9000",
		VisionStreamURL:     "ws://localhost:9000/stream",
		VisionProbeTimeout:  2 * time.Second,
		VisionFrameInterval: 33 * time.Millisecond,

		SimulatedTick: 500 * time.Millisecond,

		DrowsyFrames:  30,
		YawnFrames:    3,
		AlertCooldown: 5 * time.Second,

		DBHost:    "localhost",
		DBPort:    "5432",
		DBUser:    "postgres",
		DBName:    "drowsisense",
		DBSSLMode: "disable",

		RedisAddr: "localhost:6379",
	}
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.ParseInt(v, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
