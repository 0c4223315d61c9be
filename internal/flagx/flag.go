// Package flagx lets several independent flag sets share os.Args: each set
// only sees the flags it declared.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of allowed flags and their
// values. Both "-f value" and "-f=value" forms are recognised; a value that
// looks like another flag is not consumed.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the config file path given with -c or -config,
// or "" when neither is present.
func JsonConfigFlags() string {
	return stringFlag("json", []string{"c", "config"}, "Path to config file")
}

// EnvFileFlags returns the dotenv file path given with -envfile, or "".
func EnvFileFlags() string {
	return stringFlag("envfile", []string{"envfile"}, "Path to .env file")
}

func stringFlag(set string, names []string, usage string) string {
	var value string

	allowed := make([]string, 0, len(names))
	fs := flag.NewFlagSet(set, flag.ContinueOnError)
	for _, n := range names {
		allowed = append(allowed, "-"+n)
		fs.StringVar(&value, n, "", usage)
	}

	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))

	return value
}
