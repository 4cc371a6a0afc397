package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/eric2788/fileconv/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

// all config will be loaded from environment variables
type Config struct {
	Port string

	WorkDir string

	FFmpegPath        string
	FFmpegDownloadURL string
	EngineLoadTimeout time.Duration
	ConvertTimeout    time.Duration

	MaxUploadSize     int
	DownloadLinkTTL   time.Duration
	DownloadRateLimit int

	Username     string
	PasswordHash string
	JwtSecret    string

	Debug bool

	downloadBufferSize     int
	streamWriterBufferSize int
}

func provider() (*Config, error) {

	password := os.Getenv("PASSWORD")
	username := os.Getenv("USERNAME")

	var passwordHash []byte
	var err error

	if password != "" && username != "" {
		passwordHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	} else {
		passwordHash, err = []byte{}, nil
	}

	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                   utils.EmptyOrElse(os.Getenv("PORT"), "8080"),
		WorkDir:                utils.EmptyOrElse(os.Getenv("WORK_DIR"), filepath.Join(os.TempDir(), "fileconv")),
		FFmpegPath:             os.Getenv("FFMPEG_PATH"),
		FFmpegDownloadURL:      os.Getenv("FFMPEG_DOWNLOAD_URL"),
		EngineLoadTimeout:      time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("ENGINE_LOAD_TIMEOUT_SECONDS"), "120"))) * time.Second,
		ConvertTimeout:         time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("CONVERT_TIMEOUT_MINUTES"), "30"))) * time.Minute,
		MaxUploadSize:          utils.MustAtoi(utils.EmptyOrElse(os.Getenv("MAX_UPLOAD_SIZE_MB"), "512")) * 1024 * 1024,
		DownloadLinkTTL:        time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("DOWNLOAD_LINK_TTL_MINUTES"), "1440"))) * time.Minute,
		DownloadRateLimit:      utils.MustAtoi(utils.EmptyOrElse(os.Getenv("DOWNLOAD_RATE_LIMIT_KB"), "0")) * 1024,
		Username:               username,
		PasswordHash:           string(passwordHash),
		JwtSecret:              utils.EmptyOrElse(os.Getenv("JWT_SECRET"), utils.RandomHexStringMust(32)),
		Debug:                  os.Getenv("DEBUG") == "true",
		downloadBufferSize:     256 * 1024,
		streamWriterBufferSize: 256 * 1024,
	}

	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ReadOnly = &GlobalReadOnly{config: cfg}
	return cfg, nil
}

var Module = fx.Module("config", fx.Provide(provider))
