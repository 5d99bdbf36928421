package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/contactkeeper/internal/flagx"
	"github.com/dmitrijs2005/contactkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "30m" style
// strings or integer nanoseconds. Only keys present in the file are applied.
type JsonConfig struct {
	HTTPAddr                     *string         `json:"http_addr"`
	GRPCAddr                     *string         `json:"grpc_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	LogLevel                     *string         `json:"log_level"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	VerifyBaseURL                *string         `json:"verify_base_url"`
	SMTPHost                     *string         `json:"smtp_host"`
	SMTPPort                     *int            `json:"smtp_port"`
	SMTPUsername                 *string         `json:"smtp_username"`
	SMTPPassword                 *string         `json:"smtp_password"`
	SMTPFrom                     *string         `json:"smtp_from"`
	MailWorkers                  *int            `json:"mail_workers"`
	MailQueueSize                *int            `json:"mail_queue_size"`
	BlobBackend                  *string         `json:"blob_backend"`
	CloudinaryCloudName          *string         `json:"cloudinary_cloud_name"`
	CloudinaryAPIKey             *string         `json:"cloudinary_api_key"`
	CloudinaryAPISecret          *string         `json:"cloudinary_api_secret"`
	S3AccessKey                  *string         `json:"s3_access_key"`
	S3SecretKey                  *string         `json:"s3_secret_key"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	RedisURL                     *string         `json:"redis_url"`
	RateLimitPerMinute           *int            `json:"rate_limit_per_minute"`
	AllowedOrigins               []string        `json:"allowed_origins"`
	AdminContactAccess           *bool           `json:"admin_contact_access"`
}

// parseJSON overlays values from the file named by -c / -config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c JsonConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	c.apply(cfg)
	return nil
}

func (c *JsonConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.GRPCAddr, c.GRPCAddr)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		cfg.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		cfg.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	setInt(&cfg.BcryptCost, c.BcryptCost)
	setString(&cfg.VerifyBaseURL, c.VerifyBaseURL)
	setString(&cfg.SMTPHost, c.SMTPHost)
	setInt(&cfg.SMTPPort, c.SMTPPort)
	setString(&cfg.SMTPUsername, c.SMTPUsername)
	setString(&cfg.SMTPPassword, c.SMTPPassword)
	setString(&cfg.SMTPFrom, c.SMTPFrom)
	setInt(&cfg.MailWorkers, c.MailWorkers)
	setInt(&cfg.MailQueueSize, c.MailQueueSize)
	setString(&cfg.BlobBackend, c.BlobBackend)
	setString(&cfg.CloudinaryCloudName, c.CloudinaryCloudName)
	setString(&cfg.CloudinaryAPIKey, c.CloudinaryAPIKey)
	setString(&cfg.CloudinaryAPISecret, c.CloudinaryAPISecret)
	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&cfg.RedisURL, c.RedisURL)
	setInt(&cfg.RateLimitPerMinute, c.RateLimitPerMinute)
	if c.AllowedOrigins != nil {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	if c.AdminContactAccess != nil {
		cfg.AdminContactAccess = *c.AdminContactAccess
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
