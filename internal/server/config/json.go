package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/woodraft/draftauth/internal/flagx"
	"github.com/woodraft/draftauth/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON configuration file.
// Durations accept both "15s"-style strings and integer nanoseconds. Only
// fields present with a non-zero value override the running Config.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	BcryptCost            int            `json:"bcrypt_cost"`
	HashWorkers           int            `json:"hash_workers"`
	FrontendURL           string         `json:"frontend_url"`
	AdminEmails           []string       `json:"admin_emails"`
	CORSOrigins           []string       `json:"cors_origins"`
	RequestTimeout        timex.Duration `json:"request_timeout"`
	MailBackend           string         `json:"mail_backend"`
	SMTPHost              string         `json:"smtp_host"`
	SMTPPort              int            `json:"smtp_port"`
	SMTPUsername          string         `json:"smtp_username"`
	SMTPPassword          string         `json:"smtp_password"`
	MailFrom              string         `json:"mail_from"`
	SMTPAllowPlaintext    bool           `json:"smtp_allow_plaintext"`
	SESRegion             string         `json:"ses_region"`
	SESEndpoint           string         `json:"ses_endpoint"`
	MailWorkers           int            `json:"mail_workers"`
	MailQueueSize         int            `json:"mail_queue_size"`
	MailMaxRetries        uint64         `json:"mail_max_retries"`
	MailRetryBaseDelay    timex.Duration `json:"mail_retry_base_delay"`
	LogFormat             string         `json:"log_format"`
	LogLevel              string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, and overlays its
// values on config. A missing or malformed file is fatal.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.TokenValidityDuration, c.TokenValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.HashWorkers, c.HashWorkers)
	setString(&config.FrontendURL, c.FrontendURL)
	if len(c.AdminEmails) > 0 {
		config.AdminEmails = compact(c.AdminEmails)
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = compact(c.CORSOrigins)
	}
	setDuration(&config.RequestTimeout, c.RequestTimeout)
	setString(&config.MailBackend, c.MailBackend)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	if c.SMTPAllowPlaintext {
		config.SMTPAllowPlaintext = true
	}
	setString(&config.SESRegion, c.SESRegion)
	setString(&config.SESEndpoint, c.SESEndpoint)
	setInt(&config.MailWorkers, c.MailWorkers)
	setInt(&config.MailQueueSize, c.MailQueueSize)
	if c.MailMaxRetries != 0 {
		config.MailMaxRetries = c.MailMaxRetries
	}
	setDuration(&config.MailRetryBaseDelay, c.MailRetryBaseDelay)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
