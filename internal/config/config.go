package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	applog "shopforge/internal/log"
)

type Config struct {
	Port     string
	DBDriver string // sqlite | pgx
	DBDSN    string
	DBName   string
	MediaDir string
	LogFile  string

	RequestTimeout time.Duration
	MaxUploadBytes int

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	KafkaBrokers []string
	OTLPEndpoint string

	// Order engine toggles; defaults keep the historical behaviour.
	AllowTotalOverride bool
	DeductInventory    bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" || driver == "sqlite3" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "shopforge.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	} // sqlite file in project root
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "shopforge"
	}
	media := os.Getenv("MEDIA_DIR")
	if media == "" {
		media = "./web/media"
	}
	baseURL := os.Getenv("RAZORPAY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}

	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	cfg := Config{
		Port:               port,
		DBDriver:           driver,
		DBDSN:              dsn,
		DBName:             dbName,
		MediaDir:           media,
		LogFile:            os.Getenv("LOG_FILE"),
		RequestTimeout:     durationEnv("REQUEST_TIMEOUT", 10*time.Second),
		MaxUploadBytes:     intEnv("MAX_UPLOAD_BYTES", 5<<20),
		RazorpayKeyID:      os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL:    strings.TrimRight(baseURL, "/"),
		KafkaBrokers:       brokers,
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AllowTotalOverride: boolEnv("ALLOW_TOTAL_OVERRIDE", true),
		DeductInventory:    boolEnv("DEDUCT_INVENTORY", false),
	}
	// key secret is deliberately left out
	applog.L().WithFields(map[string]any{
		"port":                 cfg.Port,
		"db_driver":            cfg.DBDriver,
		"db_name":              cfg.DBName,
		"media_dir":            cfg.MediaDir,
		"log_file":             cfg.LogFile,
		"request_timeout":      cfg.RequestTimeout.String(),
		"razorpay_key_id":      cfg.RazorpayKeyID,
		"razorpay_base_url":    cfg.RazorpayBaseURL,
		"kafka_brokers":        cfg.KafkaBrokers,
		"allow_total_override": cfg.AllowTotalOverride,
		"deduct_inventory":     cfg.DeductInventory,
	}).Info("config.loaded")
	return cfg
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
