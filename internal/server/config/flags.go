package config

import (
	"flag"
	"os"
	"time"

	"github.com/akarpov91/vaultd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              HTTP bind address (e.g., ":8080")
//	-d string              PostgreSQL DSN
//	-storage string        storage backend: "postgres" or "memory"
//	-s string              JWT HMAC secret key
//	-app-secret string     key derivation pepper
//	-t int                 access token validity, minutes
//	-r int                 refresh token validity, minutes
//	-state-ttl int         pending login state TTL, minutes
//	-kdf-iterations int    PBKDF2 iteration count
//	-oidc-issuer string    upstream IDP issuer URL
//	-oidc-client-id string
//	-oidc-client-secret string
//	-oidc-redirect-url string
//	-state-store string    state store backend: "memory" or "redis"
//	-redis-addr string     redis address (host:port)
//	-u string              S3 root user
//	-p string              S3 root password
//	-b string              S3 bucket name
//	-g string              S3 region
//	-e string              S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-storage", "-s", "-app-secret", "-t", "-r", "-state-ttl",
		"-kdf-iterations", "-oidc-issuer", "-oidc-client-id", "-oidc-client-secret",
		"-oidc-redirect-url", "-state-store", "-redis-addr",
		"-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "storage backend (postgres|memory)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.AppSecret, "app-secret", config.AppSecret, "key derivation pepper")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	oauthStateTTL := fs.Int("state-ttl", int(config.OAuthStateTTL.Minutes()), "oauth_state_ttl (in minutes)")

	fs.IntVar(&config.KDFIterations, "kdf-iterations", config.KDFIterations, "PBKDF2 iteration count")

	fs.StringVar(&config.OIDCIssuer, "oidc-issuer", config.OIDCIssuer, "OIDC issuer URL")
	fs.StringVar(&config.OIDCClientID, "oidc-client-id", config.OIDCClientID, "OIDC client id")
	fs.StringVar(&config.OIDCClientSecret, "oidc-client-secret", config.OIDCClientSecret, "OIDC client secret")
	fs.StringVar(&config.OIDCRedirectURL, "oidc-redirect-url", config.OIDCRedirectURL, "OIDC redirect URL")

	fs.StringVar(&config.StateStoreBackend, "state-store", config.StateStoreBackend, "state store backend (memory|redis)")
	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.OAuthStateTTL = time.Duration(*oauthStateTTL) * time.Minute
}
