/*
Copyright © 2021 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package conf

// This source file contains definition of data type named ConfigStruct that
// represents configuration of the ServerDensity synchronization tool. This
// source file also contains function named LoadConfiguration that can be used
// to load configuration from provided configuration file and/or from
// environment variables. Additionally several specific functions named
// GetServerDensityConfiguration, GetSyncConfiguration,
// GetInventoryConfiguration, GetCacheConfiguration, GetStorageConfiguration,
// GetLoggingConfiguration, GetKafkaBrokerConfiguration and
// GetMetricsConfiguration are to be used to return specific configuration
// options.

// Default name of configuration file is config.toml
// It can be changed via environment variable SD_SYNC_CONFIG_FILE

// An example of configuration file that can be used in devel environment:
//
// [server_density]
// url = "https://api.serverdensity.io/"
// api_token = ""
// timeout = "30s"
//
// [sync]
// force = false
// cleanup = false
//
// [inventory]
// path = "inventory.yml"
// facts_dir = ".facts"
//
// [cache]
// backend = "file"
// path = "sd_cache.json"
//
// [logging]
// debug = true
// log_level = ""
//
// Environment variables that can be used to override configuration file settings:
// SD_SYNC_SERVER_DENSITY__API_TOKEN, SD_SYNC_SYNC__FORCE etc.

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	clowder "github.com/redhatinsights/app-common-go/pkg/api/v1"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Configuration-related constants
const (
	// ConfigFileEnvVariableName is name of environment variable that
	// contains name of configuration file
	ConfigFileEnvVariableName = "SD_SYNC_CONFIG_FILE"

	// DefaultConfigFileName is name of configuration file used when the
	// environment variable is not set
	DefaultConfigFileName = "config"

	// ClowderConfigEnvVariableName is name of environment variable that
	// contains path to Clowder configuration
	ClowderConfigEnvVariableName = "ACG_CONFIG"

	envPrefix = "SD_SYNC_"
)

// Default values
const (
	DefaultAPIURL     = "https://api.serverdensity.io/"
	DefaultAPITimeout = 30 * time.Second
	DefaultCacheTable = "sd_cache"
	DefaultMetricsJob = "serverdensity_sync"
)

// Cache backends
const (
	CacheBackendFile   = "file"
	CacheBackendSQL    = "sql"
	CacheBackendMemory = "memory"
)

// ConfigStruct is a structure holding the whole synchronization tool
// configuration
type ConfigStruct struct {
	Logging       LoggingConfiguration       `mapstructure:"logging" toml:"logging"`
	ServerDensity ServerDensityConfiguration `mapstructure:"server_density" toml:"server_density"`
	Sync          SyncConfiguration          `mapstructure:"sync" toml:"sync"`
	Inventory     InventoryConfiguration     `mapstructure:"inventory" toml:"inventory"`
	Cache         CacheConfiguration         `mapstructure:"cache" toml:"cache"`
	Storage       StorageConfiguration       `mapstructure:"storage" toml:"storage"`
	Kafka         KafkaConfiguration         `mapstructure:"kafka_broker" toml:"kafka_broker"`
	Metrics       MetricsConfiguration       `mapstructure:"metrics" toml:"metrics"`
}

// LoggingConfiguration represents configuration for logging in general
type LoggingConfiguration struct {
	// Debug enables pretty colored logging
	Debug bool `mapstructure:"debug" toml:"debug"`

	// LogLevel sets logging level to show. Possible values are:
	// "debug"
	// "info"
	// "warn", "warning"
	// "error"
	// "fatal"
	//
	// logging level won't be changed if value is not one of listed above
	LogLevel string `mapstructure:"log_level" toml:"log_level"`
}

// ServerDensityConfiguration represents configuration of the ServerDensity
// REST API endpoint
type ServerDensityConfiguration struct {
	URL      string        `mapstructure:"url" toml:"url"`
	APIToken string        `mapstructure:"api_token" toml:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// SyncConfiguration represents the behaviour of one synchronization run
type SyncConfiguration struct {
	// Force enables updates of objects that already exist remotely
	Force bool `mapstructure:"force" toml:"force"`
	// Cleanup enables deletion of alerts not declared in inventory
	Cleanup bool `mapstructure:"cleanup" toml:"cleanup"`
	// ReadOnly just downloads remote state into a temporary cache file
	ReadOnly bool `mapstructure:"readonly" toml:"readonly"`
}

// InventoryConfiguration represents configuration of the inventory source
type InventoryConfiguration struct {
	Path              string `mapstructure:"path" toml:"path"`
	FactsDir          string `mapstructure:"facts_dir" toml:"facts_dir"`
	NotificationsFile string `mapstructure:"notifications_file" toml:"notifications_file"`
	AgentKeysFile     string `mapstructure:"agent_keys_file" toml:"agent_keys_file"`
}

// CacheConfiguration represents configuration of the remote state cache
type CacheConfiguration struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Path    string `mapstructure:"path" toml:"path"`
	Table   string `mapstructure:"table" toml:"table"`
}

// StorageConfiguration represents configuration of SQL storage used by the
// "sql" cache backend
type StorageConfiguration struct {
	Driver           string `mapstructure:"db_driver"          toml:"db_driver"`
	SQLiteDataSource string `mapstructure:"sqlite_datasource"  toml:"sqlite_datasource"`
	PGUsername       string `mapstructure:"pg_username"        toml:"pg_username"`
	PGPassword       string `mapstructure:"pg_password"        toml:"pg_password"`
	PGHost           string `mapstructure:"pg_host"            toml:"pg_host"`
	PGPort           int    `mapstructure:"pg_port"            toml:"pg_port"`
	PGDBName         string `mapstructure:"pg_db_name"         toml:"pg_db_name"`
	PGParams         string `mapstructure:"pg_params"          toml:"pg_params"`
	LogSQLQueries    bool   `mapstructure:"log_sql_queries"    toml:"log_sql_queries"`
}

// KafkaConfiguration represents configuration of Kafka brokers and topics
// used to publish change events
type KafkaConfiguration struct {
	Enabled          bool          `mapstructure:"enabled" toml:"enabled"`
	Addresses        string        `mapstructure:"addresses" toml:"addresses"`
	SecurityProtocol string        `mapstructure:"security_protocol" toml:"security_protocol"`
	CertPath         string        `mapstructure:"cert_path" toml:"cert_path"`
	SaslMechanism    string        `mapstructure:"sasl_mechanism" toml:"sasl_mechanism"`
	SaslUsername     string        `mapstructure:"sasl_username" toml:"sasl_username"`
	SaslPassword     string        `mapstructure:"sasl_password" toml:"sasl_password"`
	Topic            string        `mapstructure:"topic"   toml:"topic"`
	Timeout          time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// MetricsConfiguration holds metrics related configuration
type MetricsConfiguration struct {
	Job              string `mapstructure:"job_name" toml:"job_name"`
	Namespace        string `mapstructure:"namespace" toml:"namespace"`
	Subsystem        string `mapstructure:"subsystem" toml:"subsystem"`
	GatewayURL       string `mapstructure:"gateway_url" toml:"gateway_url"`
	GatewayAuthToken string `mapstructure:"gateway_auth_token" toml:"gateway_auth_token"`
}

// LoadConfiguration loads configuration from defaultConfigFile, file set in
// configFileEnvVariableName or from env
func LoadConfiguration(configFileEnvVariableName, defaultConfigFile string) (ConfigStruct, error) {
	var config ConfigStruct

	// start from a clean state, LoadConfiguration might be called
	// several times from unit tests
	viper.Reset()

	// env. variable holding name of configuration file
	configFile, specified := os.LookupEnv(configFileEnvVariableName)
	if specified {
		// we need to separate the directory name and filename without
		// extension
		directory, basename := filepath.Split(configFile)
		file := strings.TrimSuffix(basename, filepath.Ext(basename))
		// parse the configuration
		viper.SetConfigName(file)
		viper.AddConfigPath(directory)
	} else {
		log.Info().Str("filename", defaultConfigFile).Msg("Parsing configuration file")
		// parse the configuration
		viper.SetConfigName(defaultConfigFile)
		viper.AddConfigPath(".")
	}

	// try to read the whole configuration
	err := viper.ReadInConfig()
	if _, isNotFoundError := err.(viper.ConfigFileNotFoundError); !specified && isNotFoundError {
		// If config file is not present (which might be correct in
		// some environment) we need to read configuration from
		// environment variables The problem is that Viper is not smart
		// enough to understand the structure of config by itself, so
		// we need to read fake config file
		fakeTomlConfigWriter := new(bytes.Buffer)

		err := toml.NewEncoder(fakeTomlConfigWriter).Encode(config)
		if err != nil {
			return config, err
		}

		fakeTomlConfig := fakeTomlConfigWriter.String()

		viper.SetConfigType("toml")

		err = viper.ReadConfig(strings.NewReader(fakeTomlConfig))
		if err != nil {
			return config, err
		}
	} else if err != nil {
		// error is processed on caller side
		return config, fmt.Errorf("fatal error config file: %s", err)
	}

	// override config from env if there's variable in env
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "__"))

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if clowder.IsClowderEnabled() {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is enabled")

		clowderConfig, err := clowder.LoadConfig(os.Getenv(ClowderConfigEnvVariableName))
		if err != nil {
			return config, fmt.Errorf("unable to load Clowder configuration: %w", err)
		}
		err = updateConfigFromClowder(&config, clowderConfig)
		if err != nil {
			return config, err
		}
	} else {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is disabled")
	}

	setDefaults(&config)

	// everything's should be ok
	return config, nil
}

// updateConfigFromClowder overrides Kafka, storage and metrics settings by
// values provided by Clowder
func updateConfigFromClowder(config *ConfigStruct, clowderConfig *clowder.AppConfig) error {
	if clowderConfig.Kafka != nil && len(clowderConfig.Kafka.Brokers) > 0 {
		if err := updateKafkaFromClowder(&config.Kafka, clowderConfig); err != nil {
			return err
		}
	} else {
		fmt.Println("No Kafka brokers provided by Clowder")
	}

	if database := clowderConfig.Database; database != nil {
		config.Storage.Driver = "postgres"
		config.Storage.PGHost = database.Hostname
		config.Storage.PGPort = database.Port
		config.Storage.PGUsername = database.Username
		config.Storage.PGPassword = database.Password
		config.Storage.PGDBName = database.Name
		if database.SslMode != "" {
			config.Storage.PGParams = "sslmode=" + database.SslMode
		}
	}

	if metadata := clowderConfig.Metadata; metadata != nil && metadata.Name != nil && config.Metrics.Job == "" {
		config.Metrics.Job = *metadata.Name
	}
	return nil
}

func updateKafkaFromClowder(kafkaConfig *KafkaConfiguration, clowderConfig *clowder.AppConfig) error {
	brokers := clowderConfig.Kafka.Brokers

	addresses := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker.Port != nil {
			addresses = append(addresses, fmt.Sprintf("%s:%d", broker.Hostname, *broker.Port))
		} else {
			addresses = append(addresses, broker.Hostname)
		}
	}
	kafkaConfig.Addresses = strings.Join(addresses, ",")

	// authentication is the same for all brokers
	broker := brokers[0]
	if broker.SecurityProtocol != nil {
		kafkaConfig.SecurityProtocol = *broker.SecurityProtocol
	}
	if sasl := broker.Sasl; sasl != nil {
		if sasl.SecurityProtocol != nil && broker.SecurityProtocol == nil {
			kafkaConfig.SecurityProtocol = *sasl.SecurityProtocol
		}
		if sasl.SaslMechanism != nil {
			kafkaConfig.SaslMechanism = *sasl.SaslMechanism
		}
		if sasl.Username != nil {
			kafkaConfig.SaslUsername = *sasl.Username
		}
		if sasl.Password != nil {
			kafkaConfig.SaslPassword = *sasl.Password
		}
	}
	if broker.Cacert != nil {
		caPath, err := clowderConfig.KafkaCa(broker)
		if err != nil {
			return fmt.Errorf("unable to store Kafka CA certificate: %w", err)
		}
		kafkaConfig.CertPath = caPath
	}

	// configured topic is the name requested in ClowdApp
	for _, topic := range clowderConfig.Kafka.Topics {
		if topic.RequestedName == kafkaConfig.Topic {
			kafkaConfig.Topic = topic.Name
			break
		}
	}
	return nil
}

// setDefaults fills in values that are required for a run but that might be
// omitted in the configuration file
func setDefaults(config *ConfigStruct) {
	if config.ServerDensity.URL == "" {
		config.ServerDensity.URL = DefaultAPIURL
	}
	if config.ServerDensity.Timeout == 0 {
		config.ServerDensity.Timeout = DefaultAPITimeout
	}
	if config.Cache.Backend == "" {
		config.Cache.Backend = CacheBackendFile
	}
	if config.Cache.Table == "" {
		config.Cache.Table = DefaultCacheTable
	}
	if config.Metrics.Job == "" {
		config.Metrics.Job = DefaultMetricsJob
	}
}

// GetServerDensityConfiguration returns ServerDensity API configuration
func GetServerDensityConfiguration(config *ConfigStruct) ServerDensityConfiguration {
	return config.ServerDensity
}

// GetSyncConfiguration returns synchronization configuration
func GetSyncConfiguration(config *ConfigStruct) SyncConfiguration {
	return config.Sync
}

// GetInventoryConfiguration returns inventory configuration
func GetInventoryConfiguration(config *ConfigStruct) InventoryConfiguration {
	return config.Inventory
}

// GetCacheConfiguration returns cache configuration
func GetCacheConfiguration(config *ConfigStruct) CacheConfiguration {
	return config.Cache
}

// GetStorageConfiguration returns storage configuration
func GetStorageConfiguration(config *ConfigStruct) StorageConfiguration {
	return config.Storage
}

// GetLoggingConfiguration returns logging configuration
func GetLoggingConfiguration(config *ConfigStruct) LoggingConfiguration {
	return config.Logging
}

// GetKafkaBrokerConfiguration returns kafka broker configuration
func GetKafkaBrokerConfiguration(config *ConfigStruct) KafkaConfiguration {
	return config.Kafka
}

// GetMetricsConfiguration returns metrics configuration
func GetMetricsConfiguration(config *ConfigStruct) MetricsConfiguration {
	return config.Metrics
}
