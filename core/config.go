package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAssessments are the assessment categories a new grading scheme is split across.
var DefaultAssessments = []string{"Quizzes", "Midterm Exam", "Final Exam"}

type (
	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string

		Server    ServerConfig
		Database  DatabaseConfig
		Gradebook GradebookConfig
		Grading   GradingConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite | memory
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
		DSN        string // takes precedence over the fields above when set
	}

	GradebookConfig struct {
		BaseURL  string // empty: saved schemes are printed to the console
		Timeout  time.Duration
		CacheTTL time.Duration
	}

	GradingConfig struct {
		DefaultAssessments []string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name: e.g. DEV_SERVER_ADDRESS, PROD_DATABASE_PASSWORD.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.dsn", "")
	v.SetDefault("gradebook.baseURL", "")
	v.SetDefault("gradebook.timeout", 10*time.Second)
	v.SetDefault("gradebook.cacheTTL", 5*time.Minute)
	v.SetDefault("grading.defaultAssessments", strings.Join(DefaultAssessments, ","))

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := os.Getenv("WORKDIR")
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			log.Fatalf("config.os.Getwd(): %v", err)
		}
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      wd,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:     strings.ToLower(v.GetString("database.engine")),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
			DSN:        v.GetString("database.dsn"),
		},
		Gradebook: GradebookConfig{
			BaseURL:  strings.TrimSuffix(v.GetString("gradebook.baseURL"), "/"),
			Timeout:  v.GetDuration("gradebook.timeout"),
			CacheTTL: v.GetDuration("gradebook.cacheTTL"),
		},
		Grading: GradingConfig{
			DefaultAssessments: assessmentNames(v.GetString("grading.defaultAssessments")),
		},
	}
}

// assessmentNames falls back to DefaultAssessments when s holds no name: a new scheme needs at least one entry.
func assessmentNames(s string) []string {
	if names := SplitList(s); len(names) > 0 {
		return names
	}
	return DefaultAssessments
}
