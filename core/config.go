package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		SecretKey    string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		DocStore DocStoreConfig
		Cache    CacheConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	DocStoreConfig struct {
		Driver string // postgres | memory
	}

	CacheConfig struct {
		Driver             string // sqlite | badger | memory
		Path               string
		Prefix             string
		TTL                time.Duration
		SoftLimit          int
		EvictBatch         int
		MaxEntries         int
		ForceRefreshWindow time.Duration
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, eg. `DEV_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Tathmini")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2u$9vq=w8hb1(x+0zr@t!4m7e&jy5p#c3l6f*a)dsn-og")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tathmini")
	v.SetDefault("database.user", "tathmini")
	v.SetDefault("database.password", "tathmini")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("docstore.driver", "postgres")

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", filepath.Join(os.TempDir(), "tathmini-cache.db"))
	v.SetDefault("cache.prefix", "tathmini_")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.softLimit", 50)
	v.SetDefault("cache.evictBatch", 10)
	v.SetDefault("cache.maxEntries", 200)
	v.SetDefault("cache.forceRefreshWindow", time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("docstore.driver", "memory")
		v.SetDefault("cache.driver", "memory")
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := os.Getenv("CONFIG_DIR")
	if confDir == "" {
		confDir = "config"
	}
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		DocStore: DocStoreConfig{
			Driver: v.GetString("docstore.driver"),
		},
		Cache: CacheConfig{
			Driver:             v.GetString("cache.driver"),
			Path:               v.GetString("cache.path"),
			Prefix:             v.GetString("cache.prefix"),
			TTL:                v.GetDuration("cache.ttl"),
			SoftLimit:          v.GetInt("cache.softLimit"),
			EvictBatch:         v.GetInt("cache.evictBatch"),
			MaxEntries:         v.GetInt("cache.maxEntries"),
			ForceRefreshWindow: v.GetDuration("cache.forceRefreshWindow"),
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s@%s (env=%s, debug=%t)", c.AppName, c.Build, c.Env, c.Debug)
}
