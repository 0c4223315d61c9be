package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/woodraft/draftauth/internal/flagx"
)

// defaultEnvFile is loaded when present; a missing file is not an error.
const defaultEnvFile = ".env"

// parseEnv loads an optional dotenv file (-envfile, or ./.env) into the
// process environment without overriding variables that are already set,
// then copies every recognised variable into config. Variables that are
// unset leave the current value untouched.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}

	config.AdminEmails = compact(config.AdminEmails)
	config.CORSOrigins = compact(config.CORSOrigins)
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
