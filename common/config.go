package common

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pagesmith/models"
)

// ManagementGroups are the backoffice entity groups that can each be gated by
// their own role through MANAGEMENT_ROLE_<GROUP>.
var ManagementGroups = []string{"sites", "menus", "page_types", "categories", "tags"}

type Config struct {
	Port          string
	Domain        string
	DBDriver      string
	DBDSN         string
	AnalyticsDB   string
	SessionSecret string
	CORSOrigin    string
	UploadDir     string
	PageTypesFile string

	HelpdeskEnabled bool
	ContactName     string
	ContactEmail    string
	FromName        string
	NoreplyEmail    string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string

	ManagementRoles map[string]string

	AnalyticsRetention         time.Duration
	AnalyticsRetentionSchedule string
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Domain:        getEnv("DOMAIN", "http://localhost:8080"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		AnalyticsDB:   getEnv("analytics_db", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		CORSOrigin:    getEnv("CORS_ORIGIN", ""),
		UploadDir:     strings.Trim(getEnv("UPLOAD_DIR", "uploads"), "/"),
		PageTypesFile: getEnv("PAGE_TYPES_FILE", ""),

		HelpdeskEnabled: getEnvBool("HELPDESK_ENABLED", false),
		ContactName:     getEnv("HELPDESK_CONTACT_NAME", ""),
		ContactEmail:    getEnv("HELPDESK_CONTACT_EMAIL", ""),
		FromName:        getEnv("HELPDESK_FROM_NAME", "pagesmith"),
		NoreplyEmail:    getEnv("HELPDESK_NOREPLY_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnvInt("SMTP_PORT", 25),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		ManagementRoles: map[string]string{},

		AnalyticsRetention:         getEnvDuration("ANALYTICS_RETENTION", 90*24*time.Hour),
		AnalyticsRetentionSchedule: getEnv("ANALYTICS_RETENTION_SCHEDULE", "@daily"),
	}

	switch cfg.DBDriver {
	case "sqlite":
		cfg.DBDSN = getEnv("sqlite_db", "")
	case "postgres":
		cfg.DBDSN = getEnv("DB_URL", "")
	default:
		return nil, errors.New("DB_DRIVER must be sqlite or postgres, got " + cfg.DBDriver)
	}

	for _, group := range ManagementGroups {
		cfg.ManagementRoles[group] = getEnv("MANAGEMENT_ROLE_"+strings.ToUpper(group), models.RoleAdmin)
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET environment variable not set")
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("no database configured for driver " + cfg.DBDriver)
	}

	return cfg, nil
}

// ManagementRole returns the role required to manage a backoffice group.
func (c *Config) ManagementRole(group string) string {
	if role, ok := c.ManagementRoles[group]; ok && role != "" {
		return role
	}
	return models.RoleAdmin
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
