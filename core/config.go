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

const MiB = 1 << 20

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		LLM      LLMConfig
		Syllabus SyllabusConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
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

	EmailConfig struct {
		Backend              string // console | sendgrid | gmail
		SendgridAPIKey       string
		SendgridHost         string
		GmailCredentialsFile string
		GmailTokenFile       string
	}

	LLMConfig struct {
		Provider       string // openai | gemini
		OpenAIKey      string
		OpenAIBaseURL  string
		OpenAIModel    string
		GeminiProject  string
		GeminiRegion   string
		GeminiModel    string
		GeminiBucket   string
		RequestTimeout time.Duration
	}

	SyllabusConfig struct {
		MaxFileSize    int64
		MaxAttempts    int
		BackoffBase    time.Duration // wait before attempt n+1 is 2^n * BackoffBase
		AttemptTimeout time.Duration
		CleanupTimeout time.Duration
		AcademicYear   int
		ValidatePDF    bool
		DueTime        time.Duration // offset from midnight applied to date-only due dates
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration from the environment (and `config/.env.<env>` if present).
// Environment variables are prefixed by the env name, e.g. `DEV_LLM_PROVIDER=gemini`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

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
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return fromViper(v, env)
}

// NewTestConfig returns a deterministic Config, independent of the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("secretKey", "secret")
	v.Set("syllabus.backoffBase", 10*time.Millisecond)
	v.Set("syllabus.academicYear", 2025)
	return fromViper(v, "TEST")
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "Trackademic")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Trackademic <noreply@localhost>")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "trackademic")
	v.SetDefault("database.user", "trackademic")
	v.SetDefault("database.password", "trackademic")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("email.backend", "console")
	v.SetDefault("email.sendgridAPIKey", "")
	v.SetDefault("email.sendgridHost", "https://api.sendgrid.com")
	v.SetDefault("email.gmailCredentialsFile", "credentials.json")
	v.SetDefault("email.gmailTokenFile", "token.json")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.openAIKey", "")
	v.SetDefault("llm.openAIBaseURL", "https://api.openai.com")
	v.SetDefault("llm.openAIModel", "gpt-4o")
	v.SetDefault("llm.geminiProject", "")
	v.SetDefault("llm.geminiRegion", "us-central1")
	v.SetDefault("llm.geminiModel", "gemini-1.5-flash")
	v.SetDefault("llm.geminiBucket", "")
	v.SetDefault("llm.requestTimeout", 90*time.Second)

	v.SetDefault("syllabus.maxFileSize", int64(10*MiB))
	v.SetDefault("syllabus.maxAttempts", 3)
	v.SetDefault("syllabus.backoffBase", time.Second)
	v.SetDefault("syllabus.attemptTimeout", 60*time.Second)
	v.SetDefault("syllabus.cleanupTimeout", 15*time.Second)
	v.SetDefault("syllabus.academicYear", time.Now().Year())
	v.SetDefault("syllabus.validatePDF", true)
	v.SetDefault("syllabus.dueTime", 23*time.Hour+59*time.Minute+59*time.Second)
}

func fromViper(v *viper.Viper, env string) *Config {
	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config: invalid defaultFromEmail: %v", err)
	}

	conf := &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: *from,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
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
		Email: EmailConfig{
			Backend:              strings.ToLower(v.GetString("email.backend")),
			SendgridAPIKey:       v.GetString("email.sendgridAPIKey"),
			SendgridHost:         v.GetString("email.sendgridHost"),
			GmailCredentialsFile: v.GetString("email.gmailCredentialsFile"),
			GmailTokenFile:       v.GetString("email.gmailTokenFile"),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(v.GetString("llm.provider")),
			OpenAIKey:      v.GetString("llm.openAIKey"),
			OpenAIBaseURL:  strings.TrimRight(v.GetString("llm.openAIBaseURL"), "/"),
			OpenAIModel:    v.GetString("llm.openAIModel"),
			GeminiProject:  v.GetString("llm.geminiProject"),
			GeminiRegion:   v.GetString("llm.geminiRegion"),
			GeminiModel:    v.GetString("llm.geminiModel"),
			GeminiBucket:   v.GetString("llm.geminiBucket"),
			RequestTimeout: v.GetDuration("llm.requestTimeout"),
		},
		Syllabus: SyllabusConfig{
			MaxFileSize:    v.GetInt64("syllabus.maxFileSize"),
			MaxAttempts:    v.GetInt("syllabus.maxAttempts"),
			BackoffBase:    v.GetDuration("syllabus.backoffBase"),
			AttemptTimeout: v.GetDuration("syllabus.attemptTimeout"),
			CleanupTimeout: v.GetDuration("syllabus.cleanupTimeout"),
			AcademicYear:   v.GetInt("syllabus.academicYear"),
			ValidatePDF:    v.GetBool("syllabus.validatePDF"),
			DueTime:        v.GetDuration("syllabus.dueTime"),
		},
	}
	if conf.TestMode {
		conf.Debug = true
	}
	return conf
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s, build %s)", c.AppName, c.Env, c.Build)
}
