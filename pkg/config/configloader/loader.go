// Package configloader assembles a typed configuration from layered sources.
package configloader

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

type Validator interface {
	Validate() error
}

// Options overrides the file locations used by LoadWith.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load reads config.yaml, then .env, then process environment variables prefixed with
// <SERVICE>_, later sources overriding earlier ones. The result is validated before returning.
func Load[T Validator](serviceName string) (T, error) {
	return LoadWith[T](serviceName, Options{ConfigFile: defaultConfigFile, EnvFile: defaultEnvFile})
}

func LoadWith[T Validator](serviceName string, opts Options) (T, error) {
	var cfg T
	k := koanf.New(".")
	prefix := strings.ToUpper(serviceName) + "_"

	keyOf := func(key string) string {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(prefix))
		return strings.ReplaceAll(key, "_", ".")
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			values := make(map[string]any, len(dotenv))
			for key, value := range dotenv {
				if strings.HasPrefix(strings.ToUpper(key), prefix) {
					values[keyOf(key)] = value
				}
			}
			if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
				log.Printf("WARN: error loading .env config: %v", err)
			}
		case !os.IsNotExist(err):
			log.Printf("WARN: error reading .env file: %v", err)
		}
	}

	// process environment has the highest priority
	if err := k.Load(env.Provider(prefix, ".", keyOf), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
