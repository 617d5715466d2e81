package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"minikv"
)

const (
	DefaultConfigName = "minikv"
	DefaultAddr       = "127.0.0.1:6380"
	envPrefix         = "MINIKV"
)

var indexTypes = map[string]minikv.IndexerType{
	"btree":  minikv.BTree,
	"art":    minikv.ART,
	"bptree": minikv.BPlusTree,
}

type AppConfig struct {
	Environment string       `mapstructure:"environment"`
	Debug       bool         `mapstructure:"debug"`
	Store       StoreConfig  `mapstructure:"store"`
	Server      ServerConfig `mapstructure:"server"`
}

type StoreConfig struct {
	DirPath       string `mapstructure:"dir_path"`
	DataFileSize  int64  `mapstructure:"data_file_size"`
	IndexType     string `mapstructure:"index_type"`
	MMapAtStartup bool   `mapstructure:"mmap_at_startup"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("debug", false)
	v.SetDefault("store.dir_path", minikv.DefaultOptions.DirPath)
	v.SetDefault("store.data_file_size", minikv.DefaultOptions.DataFileSize)
	v.SetDefault("store.index_type", "btree")
	v.SetDefault("store.mmap_at_startup", minikv.DefaultOptions.MMapAtStartup)
	v.SetDefault("server.addr", DefaultAddr)
}

// Load reads configFile, or minikv.yaml from the working directory or
// /etc/minikv when configFile is empty. A missing default config file is not
// an error; MINIKV_* environment variables override file values.
func Load(configFile string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/minikv")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *AppConfig) Validate() error {
	if _, ok := indexTypes[strings.ToLower(c.Store.IndexType)]; !ok {
		return fmt.Errorf("unsupported index type %q", c.Store.IndexType)
	}
	if c.Store.DirPath == "" {
		return errors.New("store dir_path should not be empty")
	}
	if c.Store.DataFileSize <= 0 {
		return errors.New("store data_file_size must be greater than 0")
	}
	if c.Server.Addr == "" {
		return errors.New("server addr should not be empty")
	}
	return nil
}

// StoreOptions converts the store section into minikv.Options.
func (c *AppConfig) StoreOptions() minikv.Options {
	return minikv.Options{
		DirPath:       c.Store.DirPath,
		DataFileSize:  c.Store.DataFileSize,
		IndexType:     indexTypes[strings.ToLower(c.Store.IndexType)],
		MMapAtStartup: c.Store.MMapAtStartup,
	}
}
