package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"canteen/pkg/domain/service"
)

const appID = "canteen"

type Config struct {
	HTTPAddress string `envconfig:"http_address" default:":8080"`
	GRPCAddress string `envconfig:"grpc_address" default:":8081"`
	LogLevel    string `envconfig:"log_level" default:"info"`

	MenuFile string `envconfig:"menu_file"`

	Storage  string `envconfig:"storage" default:"memory"`
	MySQLDSN string `envconfig:"mysql_dsn" default:"canteen:canteen@tcp(localhost:3306)/canteen?parseTime=true&multiStatements=true"`

	InitialBalance  string `envconfig:"initial_balance" default:"50.00"`
	TopUpAmount     string `envconfig:"top_up_amount" default:"10.00"`
	StartScreen     string `envconfig:"start_screen" default:"Canteen"`
	OrderNumberSeed int64  `envconfig:"order_number_seed" default:"123455"`

	RateLimit float64 `envconfig:"rate_limit" default:"20"`
	RateBurst int     `envconfig:"rate_burst" default:"40"`

	SessionIdleTimeout time.Duration `envconfig:"session_idle_timeout" default:"30m"`
	SweepInterval      time.Duration `envconfig:"sweep_interval" default:"1m"`
}

func Parse() (*Config, error) {
	c := new(Config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	return c, nil
}

func (c *Config) WalletPolicy() (service.WalletPolicy, error) {
	initial, err := decimal.NewFromString(c.InitialBalance)
	if err != nil {
		return service.WalletPolicy{}, errors.Wrap(err, "invalid initial balance")
	}
	topUp, err := decimal.NewFromString(c.TopUpAmount)
	if err != nil {
		return service.WalletPolicy{}, errors.Wrap(err, "invalid top up amount")
	}
	return service.WalletPolicy{
		InitialBalance: initial,
		TopUpAmount:    topUp,
		StartScreen:    c.StartScreen,
	}, nil
}
