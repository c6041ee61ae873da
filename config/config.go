package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Search mode values for Directory.SearchMode.
const (
	SearchModeKeyword = "keyword"
	SearchModeFaceted = "faceted"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

// DirectoryConfig captures the deployment variants the directory
// supports. Email is always uniqueness-governed and phone is governed
// when present; name participation and the search semantics differ
// between deployments, so they are configuration rather than code.
type DirectoryConfig struct {
	// UniqueName adds name to the uniqueness-governed fields. The
	// pre-check honors it immediately; deployments enabling it should
	// also create the matching unique index on users(name).
	UniqueName bool `mapstructure:"uniqueName"`
	// SearchMode is "keyword" (single term, OR across name/email/phone)
	// or "faceted" (per-field filters combined with AND).
	SearchMode string `mapstructure:"searchMode"`
	// EmptySearchNotFound makes a search with zero matches answer 404
	// instead of 200 with an empty array.
	EmptySearchNotFound bool `mapstructure:"emptySearchNotFound"`
	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost int `mapstructure:"bcryptCost"`
	// CacheTTL bounds how long a fetched record may be served from the
	// read cache before hitting storage again.
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config, fall back to the embedded one
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if config.Directory.SearchMode == "" {
		config.Directory.SearchMode = SearchModeKeyword
	}
	if config.Directory.SearchMode != SearchModeKeyword && config.Directory.SearchMode != SearchModeFaceted {
		return Config{}, fmt.Errorf("invalid directory.searchMode %q", config.Directory.SearchMode)
	}
	return config, nil
}
