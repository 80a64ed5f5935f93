package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Application struct {
	Server   Server   `koanf:"server"`
	Database Database `koanf:"db"`
	Ledger   Ledger   `koanf:"ledger"`
	Admin    Admin    `koanf:"admin"`
	Amqp     Amqp     `koanf:"amqp"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Database struct {
	Driver string `koanf:"driver"`
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
	// Path is the SQLite database file, used only with the sqlite driver.
	Path string `koanf:"path"`
}

type Ledger struct {
	// CurrencySymbol prefixes amounts in human-readable budget messages.
	CurrencySymbol string `koanf:"currencysymbol"`
}

type Admin struct {
	// ApiKey protects administrative routes. Empty disables the check.
	ApiKey string `koanf:"apikey"`
}

type Amqp struct {
	// Url of the broker. Empty disables event publishing.
	Url      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
}

func defaults() Application {
	return Application{
		Server: Server{
			Addr: ":8181",
		},
		Database: Database{
			Driver: DriverPostgres,
			Host:   "localhost",
			Port:   5432,
			User:   "hris",
			Pass:   "",
			Name:   "hris",
			Schema: "hris",
			Path:   "./data/hris.db",
		},
		Ledger: Ledger{
			CurrencySymbol: "$",
		},
		Amqp: Amqp{
			Exchange: "hris.ledger",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "HRIS_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "HRIS_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if err := app.Validate(); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (a Application) Validate() error {
	switch a.Database.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if strings.TrimSpace(a.Database.Path) == "" {
			return fmt.Errorf("db.path is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported db.driver %q: must be %s or %s", a.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if a.Amqp.Url != "" && strings.TrimSpace(a.Amqp.Exchange) == "" {
		return fmt.Errorf("amqp.exchange is required when amqp.url is set")
	}
	if a.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}
