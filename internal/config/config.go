package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type AkoolConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	DetectURL string        `mapstructure:"detect_url"`
	CreateURL string        `mapstructure:"create_url"`
	UpdateURL string        `mapstructure:"update_url"`
	CloseURL  string        `mapstructure:"close_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type AgoraConfig struct {
	// AppID is the fallback for sessions whose credentials carry an empty
	// app id. Both empty is a configuration error at join time.
	AppID           string `mapstructure:"app_id"`
	GatewayURL      string `mapstructure:"gateway_url"`
	ViewerUIDOffset uint32 `mapstructure:"viewer_uid_offset"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type MediaConfig struct {
	VideoSource string `mapstructure:"video_source"`
	AudioSource string `mapstructure:"audio_source"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	FrameRate   int    `mapstructure:"frame_rate"`
}

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	Akool      AkoolConfig      `mapstructure:"akool"`
	Agora      AgoraConfig      `mapstructure:"agora"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	Media      MediaConfig      `mapstructure:"media"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("akool.detect_url", "https://sg3.akool.com/detect")
	v.SetDefault("akool.create_url", "https://openapi.akool.com/api/open/v3/faceswap/live/create")
	v.SetDefault("akool.update_url", "https://openapi.akool.com/api/open/v3/faceswap/live/update")
	v.SetDefault("akool.close_url", "https://openapi.akool.com/api/open/v3/faceswap/live/close")
	v.SetDefault("akool.timeout", "30s")
	v.SetDefault("agora.gateway_url", "ws://127.0.0.1:8443/ws")
	v.SetDefault("agora.viewer_uid_offset", 1000)
	v.SetDefault("cloudinary.folder", "face-swap")
	v.SetDefault("media.video_source", "/tmp/capture/camera.h264")
	v.SetDefault("media.audio_source", "/tmp/capture/mic.ogg")
	v.SetDefault("media.width", 640)
	v.SetDefault("media.height", 480)
	v.SetDefault("media.frame_rate", 20)

	// Secrets come from the environment, never from the config file.
	_ = v.BindEnv("akool.api_key", "AKOOL_API_KEY")
	_ = v.BindEnv("agora.app_id", "AGORA_APP_ID")
	_ = v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	_ = v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	_ = v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	_ = v.BindEnv("secret", "SESSION_SECRET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
