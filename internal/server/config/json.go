package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/akarpov91/vaultd/internal/flagx"
	"github.com/akarpov91/vaultd/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	StorageBackend               string         `json:"storage_backend"`
	SecretKey                    string         `json:"secret_key"`
	AppSecret                    string         `json:"app_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OAuthStateTTL                timex.Duration `json:"oauth_state_ttl"`
	KDFIterations                int            `json:"kdf_iterations"`
	OIDCIssuer                   string         `json:"oidc_issuer"`
	OIDCClientID                 string         `json:"oidc_client_id"`
	OIDCClientSecret             string         `json:"oidc_client_secret"`
	OIDCRedirectURL              string         `json:"oidc_redirect_url"`
	StateStoreBackend            string         `json:"state_store_backend"`
	RedisAddr                    string         `json:"redis_addr"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags. If
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

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

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.StorageBackend = c.StorageBackend
	config.SecretKey = c.SecretKey
	config.AppSecret = c.AppSecret
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	config.OAuthStateTTL = time.Duration(c.OAuthStateTTL.Duration)
	config.KDFIterations = c.KDFIterations
	config.OIDCIssuer = c.OIDCIssuer
	config.OIDCClientID = c.OIDCClientID
	config.OIDCClientSecret = c.OIDCClientSecret
	config.OIDCRedirectURL = c.OIDCRedirectURL
	config.StateStoreBackend = c.StateStoreBackend
	config.RedisAddr = c.RedisAddr
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
