package core

import (
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
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Email    EmailConfig
		Roles    RolesConfig
		Jobs     JobsConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		CORSOrigins               []string
		RateLimitRequests         int
		RateLimitWindow           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	EmailConfig struct {
		Backend        string // console | sendgrid | relay
		RelayURL       string
		RelayKey       string
		RelayBatchSize int
	}

	RolesConfig struct {
		AdminEmails     []string
		ProfessorEmails []string
		Cooldown        time.Duration
	}

	JobsConfig struct {
		EnrollmentPolicySchedule string // cron expression; empty disables the job
		EnrollmentPolicyFix      bool
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// DefaultFromEmail parses the configured sender; falls back to the bare address on parse errors.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Campus")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 15*time.Minute)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.rateLimitRequests", 10)
	v.SetDefault("server.rateLimitWindow", 15*time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "campus")
	v.SetDefault("database.user", "campus")
	v.SetDefault("database.password", "campus")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("email.backend", "console")
	v.SetDefault("email.relayURL", "")
	v.SetDefault("email.relayKey", "")
	v.SetDefault("email.relayBatchSize", 100)

	v.SetDefault("roles.adminEmails", []string{})
	v.SetDefault("roles.professorEmails", []string{})
	v.SetDefault("roles.cooldown", 5*time.Minute)

	v.SetDefault("jobs.enrollmentPolicySchedule", "0 2 * * *")
	v.SetDefault("jobs.enrollmentPolicyFix", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		WorkDir:                   workDir,
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			CORSOrigins:               splitList(v.GetStringSlice("server.corsOrigins")),
			RateLimitRequests:         v.GetInt("server.rateLimitRequests"),
			RateLimitWindow:           v.GetDuration("server.rateLimitWindow"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Email: EmailConfig{
			Backend:        strings.ToLower(v.GetString("email.backend")),
			RelayURL:       v.GetString("email.relayURL"),
			RelayKey:       v.GetString("email.relayKey"),
			RelayBatchSize: v.GetInt("email.relayBatchSize"),
		},
		Roles: RolesConfig{
			AdminEmails:     splitList(v.GetStringSlice("roles.adminEmails")),
			ProfessorEmails: splitList(v.GetStringSlice("roles.professorEmails")),
			Cooldown:        v.GetDuration("roles.cooldown"),
		},
		Jobs: JobsConfig{
			EnrollmentPolicySchedule: v.GetString("jobs.enrollmentPolicySchedule"),
			EnrollmentPolicyFix:      v.GetBool("jobs.enrollmentPolicyFix"),
		},
	}
}

// splitList flattens comma separated env values ("a@x.cd,b@x.cd") into a clean list.
func splitList(vals []string) []string {
	list := make([]string, 0, len(vals))
	for _, val := range vals {
		for _, item := range strings.Split(val, ",") {
			if item = CleanString(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}
