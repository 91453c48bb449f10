package config

import (
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wedding-rsvp/internal/apperr"
)

// Config holds the application configuration
type Config struct {
	Port          string
	LogLevel      string
	PrettyLogs    bool
	DataDir       string
	PublicBaseURL string
	CountryCode   string

	AirtableAPIKey string
	AirtableBaseID string
	AirtableTable  string
	AirtableAPIURL string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyPlaylistID   string
	SpotifyRedirectURI  string
	SpotifyRefreshToken string
	SpotifyAccountsURL  string
	SpotifyAPIURL       string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	OutboxRetention    time.Duration

	WhatsAppEnabled bool
	WeddingDate     string
	WeddingLocation string
	BrideName       string
	GroomName       string
}

// LoadEnvFile loads variables from an env file without overriding the environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadConfig loads configuration from environment variables or defaults.
// Secrets are not checked here; see the Require methods.
func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "3001"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PrettyLogs:    getBool("PRETTY_LOGS", false),
		DataDir:       getEnv("DATA_DIR", "data"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3001"), "/"),
		CountryCode:   getEnv("DEFAULT_COUNTRY_CODE", "1"),

		AirtableAPIKey: os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:  getEnv("AIRTABLE_TABLE", "Address Collector"),
		AirtableAPIURL: getEnv("AIRTABLE_API_URL", "https://api.airtable.com"),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyPlaylistID:   os.Getenv("SPOTIFY_PLAYLIST_ID"),
		SpotifyRedirectURI:  getEnv("SPOTIFY_REDIRECT_URI", "http://localhost:3001/spotify/callback"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		SpotifyAccountsURL:  getEnv("SPOTIFY_ACCOUNTS_URL", "https://accounts.spotify.com"),
		SpotifyAPIURL:       getEnv("SPOTIFY_API_URL", "https://api.spotify.com"),

		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 10*time.Second),
		OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 20),
		OutboxMaxRetries:   getInt("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:    getDuration("OUTBOX_RETENTION", 30*24*time.Hour),

		WhatsAppEnabled: getBool("WHATSAPP_ENABLED", false),
		WeddingDate:     getEnv("WEDDING_DATE", "Saturday, January 1, 2025"),
		WeddingLocation: getEnv("WEDDING_LOCATION", "Venue TBD"),
		BrideName:       getEnv("BRIDE_NAME", "Bride"),
		GroomName:       getEnv("GROOM_NAME", "Groom"),
	}
}

// RequireAirtable fails with a configuration error when the record store is not configured
func (c *Config) RequireAirtable() error {
	return requireEnv(map[string]string{
		"AIRTABLE_API_KEY": c.AirtableAPIKey,
		"AIRTABLE_BASE_ID": c.AirtableBaseID,
	})
}

// RequireSpotifyClient fails when the Spotify application credentials are missing
func (c *Config) RequireSpotifyClient() error {
	return requireEnv(map[string]string{
		"SPOTIFY_CLIENT_ID":     c.SpotifyClientID,
		"SPOTIFY_CLIENT_SECRET": c.SpotifyClientSecret,
	})
}

// RequirePlaylist fails when playlist writes cannot be configured
func (c *Config) RequirePlaylist() error {
	if err := c.RequireSpotifyClient(); err != nil {
		return err
	}
	return requireEnv(map[string]string{"SPOTIFY_PLAYLIST_ID": c.SpotifyPlaylistID})
}

func requireEnv(values map[string]string) error {
	var missing []string
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperr.Configuration(missing...)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
