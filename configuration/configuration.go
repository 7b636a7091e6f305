package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bartossh/Federation/client"
	"github.com/bartossh/Federation/dataprovider"
	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/fileoperations"
	"github.com/bartossh/Federation/natsclient"
	"github.com/bartossh/Federation/repomongo"
	"github.com/bartossh/Federation/repository"
	"github.com/bartossh/Federation/server"
	"github.com/bartossh/Federation/telemetry"
	"github.com/bartossh/Federation/zincadapter"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Environment variables overriding secrets from the yaml file.
const (
	EnvDBConnStr    = "FEDERATION_DB_CONN_STR"
	EnvMongoConnStr = "FEDERATION_MONGO_CONN_STR"
	EnvNatsToken    = "FEDERATION_NATS_TOKEN"
	EnvWalletPasswd = "FEDERATION_WALLET_PASSWD"
	EnvZincToken    = "FEDERATION_ZINC_TOKEN"
)

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	Federation   federation.Config     `yaml:"federation"`
	Server       server.Config         `yaml:"server"`
	Database     repository.DBConfig   `yaml:"database"`
	Mongo        repomongo.DBConfig    `yaml:"mongo"`
	DataProvider dataprovider.Config   `yaml:"data_provider"`
	FileOperator fileoperations.Config `yaml:"file_operator"`
	Nats         natsclient.Config     `yaml:"nats"`
	Telemetry    telemetry.Config      `yaml:"telemetry"`
	Client       client.Config         `yaml:"client"`
	Zinc         zincadapter.Config    `yaml:"zinc"`
	LogLevel     string                `yaml:"log_level"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
// Secrets are overridden by environment variables, a .env file next to the working directory is loaded first if present.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var main Configuration
	err = yaml.Unmarshal(buf, &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Configuration{}, fmt.Errorf("loading .env file: %w", err)
	}
	main.overrideFromEnv()

	return main, nil
}

func (c *Configuration) overrideFromEnv() {
	override(&c.Database.ConnStr, EnvDBConnStr)
	override(&c.Mongo.ConnStr, EnvMongoConnStr)
	override(&c.Nats.Token, EnvNatsToken)
	override(&c.FileOperator.WalletPasswd, EnvWalletPasswd)
	override(&c.Zinc.Token, EnvZincToken)
}

func override(field *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*field = v
	}
}
