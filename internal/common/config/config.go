package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken    string        `env:"BOT_TOKEN,required"`
		PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30s"`
	}

	YooKassa struct {
		ShopID    string `env:"YOOKASSA_ID,required"`
		SecretKey string `env:"YOOKASSA_KEY,required"`
		ReturnURL string `env:"YOOKASSA_RETURN_URL,required"`
	}

	Admin struct {
		Password string `env:"ADMIN_PASSWORD,required"`
	}

	Reconciler struct {
		Interval       time.Duration `env:"RECONCILE_INTERVAL" envDefault:"300s"`
		GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Ignore a missing .env file; in production the variables
		// are set directly in the environment.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
