package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/woodraft/draftauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      bearer token validity, hours
//	-f string   frontend base URL used in invite links
//	-m string   mail backend: smtp, ses or log
//	-admins     comma separated admin email allow-list
//
// Other arguments are ignored so that -c/-config and -envfile can share os.Args.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-f", "-m", "-admins"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity duration (in hours)")
	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend base URL")
	fs.StringVar(&config.MailBackend, "m", config.MailBackend, "mail backend (smtp, ses, log)")
	admins := fs.String("admins", strings.Join(config.AdminEmails, ","), "comma separated admin emails")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
		case "admins":
			config.AdminEmails = compact(strings.Split(*admins, ","))
		}
	})
}
