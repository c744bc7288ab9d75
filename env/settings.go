package env

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/cache"
	"gopkg.in/yaml.v3"
)

// SettingsPrefix prefixes the environment variables that override cache settings,
// e.g. DECORSTORE_CACHE_REDIS_CONNECTION_STRING.
const SettingsPrefix = "DECORSTORE_CACHE_"

// SettingsSource describes where LoadSettings reads from. Later sources win:
// defaults, then File (YAML), then EnvFile (dotenv), then the process environment.
type SettingsSource struct {
	File    string
	EnvFile string
	// Lookup replaces os.LookupEnv.
	Lookup func(string) (string, bool)
}

// EnvName returns the override variable for a YAML settings key.
func EnvName(yamlKey string) string {
	return SettingsPrefix + strings.ToUpper(yamlKey)
}

// LoadSettings builds and validates cache settings.
func LoadSettings(src SettingsSource) (cache.Settings, error) {
	settings := cache.DefaultSettings()
	if src.File != "" {
		buf, err := os.ReadFile(src.File)
		if err != nil {
			return settings, errors.Wrapf(err, "reading settings file %s", src.File)
		}
		if err := yaml.Unmarshal(buf, &settings); err != nil {
			return settings, errors.Wrapf(err, "parsing settings file %s", src.File)
		}
	}
	lookup := src.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if src.EnvFile != "" {
		lines, err := ParseEnvFile(src.EnvFile)
		if err != nil {
			return settings, err
		}
		lookup = withDotenv(lookup, lines)
	}
	if err := applyEnv(&settings, lookup); err != nil {
		return settings, err
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func withDotenv(next func(string) (string, bool), lines []EnvLine) func(string) (string, bool) {
	vals := make(map[string]string, len(lines))
	for _, l := range lines {
		vals[l.Key] = l.Val
	}
	return func(key string) (string, bool) {
		if v, ok := next(key); ok {
			return v, ok
		}
		v, ok := vals[key]
		return v, ok
	}
}

// applyEnv overrides every field whose DECORSTORE_CACHE_<YAML KEY> variable is set.
// Lists are comma separated.
func applyEnv(settings *cache.Settings, lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(settings).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		name := EnvName(tag)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", name)
			}
			field.SetBool(b)
		case reflect.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", name)
			}
			field.SetInt(int64(n))
		case reflect.Slice:
			items := make([]string, 0)
			for _, item := range strings.Split(raw, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			field.Set(reflect.ValueOf(items))
		default:
			return errors.Newf("unsupported settings field %s", t.Field(i).Name)
		}
	}
	return nil
}
