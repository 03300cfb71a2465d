package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is given.
const DefaultPath = "opsboard.yml"

// Load reads path, loads .env files, applies defaults and OPSBOARD_*
// environment overrides, then validates. Env always wins over the file.
//
// .env loading order: ENV_FILE alone when set, otherwise .env.local then .env.
// Missing files are ignored.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML without touching .env files.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	if cfg.Database.URL == "" {
		cfg.Database.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Path returns flagValue when set, else CONFIG_PATH, else DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return DefaultPath
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	// godotenv does not override variables already set, so .env.local wins.
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides walks cfg and sets every field tagged `env:"NAME"` whose
// variable is non-empty.
func applyEnvOverrides(cfg any) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field)
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			setFieldFromString(field, val)
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Bool:
		s := strings.ToLower(strings.TrimSpace(val))
		field.SetBool(s == "true" || s == "1" || s == "yes")
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(val, ",")
			for i, p := range parts {
				parts[i] = strings.TrimSpace(p)
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}

// UnmarshalYAML fills omitted category and location columns with -1 so an
// absent key never reads column 0.
func (rc *RankedConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain RankedConfig
	p := plain{CategoryCol: -1, LocationCol: -1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*rc = RankedConfig(p)
	return nil
}
