package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           int
	DataPath       string
	UploadPath     string
	DBPath         string
	TranscriberURL string
	TranslatorURL  string
	RendererURL    string
	JWTSecret      string
	AdminUsername  string
	AdminPassword  string
	CORSOrigins    []string
	MaxUploadBytes int64
}

func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	dataPath := getEnv("DATA_PATH", "/data")

	maxUploadMB, _ := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "2048"), 10, 64)

	// JWT secret: require explicit setting or generate random
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("Failed to generate random JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Println("WARNING: JWT_SECRET not set, using random secret. Sessions will not survive restarts. Set JWT_SECRET env var for persistent sessions.")
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		Port:           port,
		DataPath:       dataPath,
		UploadPath:     getEnv("UPLOAD_PATH", dataPath+"/uploads"),
		DBPath:         getEnv("DB_PATH", dataPath+"/captionsync.db"),
		TranscriberURL: getEnv("TRANSCRIBER_URL", "http://localhost:9000"),
		TranslatorURL:  getEnv("TRANSLATOR_URL", "http://localhost:9001"),
		RendererURL:    getEnv("RENDERER_URL", "http://localhost:9002"),
		JWTSecret:      jwtSecret,
		AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "admin"),
		CORSOrigins:    corsOrigins,
		MaxUploadBytes: maxUploadMB << 20,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
