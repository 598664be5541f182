package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/flagx"
	"github.com/dmitrijs2005/addonkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing string
// values such as "90s" or "1d" as well as integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Only the fields present in the file are copied into
// the runtime Config; pointers distinguish "absent" from the zero value.
type JsonConfig struct {
	EndpointAddrGRPC            string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	VaultKey                    string          `json:"vault_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	SessionKeyTTL               *timex.Duration `json:"session_key_ttl"`
	RemoteAPIURL                string          `json:"remote_api_url"`
	RemoteRateLimit             *float64        `json:"remote_rate_limit"`
	RemoteBurst                 *int            `json:"remote_burst"`
	HTTPTimeout                 *timex.Duration `json:"http_timeout"`
	ManifestCacheTTL            *timex.Duration `json:"manifest_cache_ttl"`
	SyncInterval                *timex.Duration `json:"sync_interval"`
	SyncJitter                  *timex.Duration `json:"sync_jitter"`
	ReloadBeforeSync            *bool           `json:"reload_before_sync"`
	AutoSelect                  *bool           `json:"auto_select"`
	WebhookURL                  *string         `json:"webhook_url"`
	S3RootUser                  string          `json:"s3_root_user"`
	S3RootPassword              string          `json:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    string          `json:"s3_region"`
	S3BaseEndpoint              string          `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c/-config flags or the ADDONKEEPER_CONFIG
// environment variable. If none is set, no JSON file is loaded. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.VaultKey, c.VaultKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.SessionKeyTTL, c.SessionKeyTTL)
	setString(&config.RemoteAPIURL, c.RemoteAPIURL)
	if c.RemoteRateLimit != nil {
		config.RemoteRateLimit = *c.RemoteRateLimit
	}
	if c.RemoteBurst != nil {
		config.RemoteBurst = *c.RemoteBurst
	}
	setDuration(&config.HTTPTimeout, c.HTTPTimeout)
	setDuration(&config.ManifestCacheTTL, c.ManifestCacheTTL)
	setDuration(&config.SyncInterval, c.SyncInterval)
	setDuration(&config.SyncJitter, c.SyncJitter)
	if c.ReloadBeforeSync != nil {
		config.ReloadBeforeSync = *c.ReloadBeforeSync
	}
	if c.AutoSelect != nil {
		config.AutoSelect = *c.AutoSelect
	}
	if c.WebhookURL != nil {
		config.WebhookURL = *c.WebhookURL
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
