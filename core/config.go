package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// AttendanceConfig holds the institution-wide attendance policy knobs.
	AttendanceConfig struct {
		// Timezone is the institution's local civil time zone; sessions are
		// scheduled and registrations resolved in this zone.
		Timezone         string
		ToleranceMinutes int
		// PreOpenMinutes is how early a teacher may open a session before its
		// scheduled start. Independent of ToleranceMinutes.
		PreOpenMinutes  int
		GeofenceLat     float64
		GeofenceLng     float64
		GeofenceRadiusM float64
	}

	Config struct {
		Env       string
		Debug     bool
		TestMode  bool
		AppName   string
		Build     string
		SecretKey string
		WorkDir   string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string
		ExpoAccessToken  string

		Server     ServerConfig
		Database   DatabaseConfig
		Attendance AttendanceConfig
	}
)

// parseFromEmail parses a "Name <addr>" or bare "addr" sender string.
func parseFromEmail(raw string) mail.Address {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		log.Printf("config: invalid defaultFromEmail %q: %v", raw, err)
		return mail.Address{Address: raw}
	}
	return *addr
}

func (c ServerConfig) Address() string   { return net.JoinHostPort(c.Host, c.Port) }
func (c DatabaseConfig) Address() string { return net.JoinHostPort(c.Host, c.Port) }

// Location resolves the configured institution time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to UTC", c.Attendance.Timezone)
		return time.UTC
	}
	return loc
}

// NewConfig loads the app configuration: typed defaults, then an optional
// config/.env.<env> file, then environment variables.
func NewConfig(workDir string) *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Presencia")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "k0q5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("expoAccessToken", "")

	conf.SetDefault("serverHost", "0.0.0.0")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("shutdownTimeout", 20*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseName", "presencia")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseUser", "presencia")
	conf.SetDefault("databasePassword", "presencia")
	conf.SetDefault("databaseAdminUser", "")
	conf.SetDefault("databaseAdminPassword", "")
	conf.SetDefault("databaseDisableTLS", true)

	conf.SetDefault("timezone", "America/La_Paz")
	conf.SetDefault("toleranceMinutes", 15)
	conf.SetDefault("preOpenMinutes", 15)
	conf.SetDefault("geofenceLat", -17.378676)
	conf.SetDefault("geofenceLng", -66.147356)
	conf.SetDefault("geofenceRadiusM", 500.0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatal(fmt.Errorf("config.godotenv(%s): %v", dotEnvPath, err))
		}
	} else if !os.IsNotExist(err) {
		log.Fatal(fmt.Errorf("config.os.Stat(%s): %v", dotEnvPath, err))
	}
	conf.AutomaticEnv()

	return &Config{
		Env:       env,
		Debug:     conf.GetBool("debug"),
		TestMode:  conf.GetBool("testMode"),
		AppName:   conf.GetString("appName"),
		Build:     conf.GetString("build"),
		SecretKey: conf.GetString("secretKey"),
		WorkDir:   workDir,

		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: parseFromEmail(conf.GetString("defaultFromEmail")),
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		ExpoAccessToken:  conf.GetString("expoAccessToken"),

		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Port:                      conf.GetString("serverPort"),
			ShutdownTimeout:           conf.GetDuration("shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Name:          conf.GetString("databaseName"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
		Attendance: AttendanceConfig{
			Timezone:         conf.GetString("timezone"),
			ToleranceMinutes: conf.GetInt("toleranceMinutes"),
			PreOpenMinutes:   conf.GetInt("preOpenMinutes"),
			GeofenceLat:      conf.GetFloat64("geofenceLat"),
			GeofenceLng:      conf.GetFloat64("geofenceLng"),
			GeofenceRadiusM:  conf.GetFloat64("geofenceRadiusM"),
		},
	}
}
