// control/sources.go
// Author: momentics <momentics@gmail.com>
//
// Configuration sources merged by Manager in priority order.

package control

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: HIOLOAD_JOBS_LOG__LEVEL sets log.level.
const EnvPrefix = "HIOLOAD_JOBS_"

// Source priorities; higher values override lower ones.
const (
	PriorityDefaults = 0
	PriorityFile     = 10
	PriorityEnv      = 20
	PriorityFlags    = 30
)

// ConfigSource loads one layer of configuration into k.
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultsSource provides DefaultConfigAsMap.
type DefaultsSource struct{}

func (DefaultsSource) Name() string  { return "defaults" }
func (DefaultsSource) Priority() int { return PriorityDefaults }
func (DefaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

// FileSource reads a YAML file. A missing file is an error only when
// Required is set.
type FileSource struct {
	Path     string
	Required bool
}

func (s FileSource) Name() string  { return "file:" + s.Path }
func (s FileSource) Priority() int { return PriorityFile }
func (s FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !s.Required {
			return nil
		}
		return err
	}
	return k.Load(file.Provider(s.Path), yaml.Parser())
}

// EnvSource reads variables carrying Prefix.
type EnvSource struct {
	Prefix string
}

func (s EnvSource) Name() string  { return "env:" + s.Prefix }
func (s EnvSource) Priority() int { return PriorityEnv }
func (s EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	return k.Load(env.Provider(prefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, prefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
}

// FlagSource applies flags that were set explicitly on the command line.
type FlagSource struct {
	Flags *pflag.FlagSet
}

func (s FlagSource) Name() string  { return "flags" }
func (s FlagSource) Priority() int { return PriorityFlags }
func (s FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags == nil {
		return nil
	}
	return k.Load(posflag.Provider(s.Flags, ".", k), nil)
}

// DefaultSources returns defaults, the optional file, environment and flags.
// An explicitly named file must exist.
func DefaultSources(configFile string, flags *pflag.FlagSet) []ConfigSource {
	return []ConfigSource{
		DefaultsSource{},
		FileSource{Path: configFile, Required: configFile != ""},
		EnvSource{Prefix: EnvPrefix},
		FlagSource{Flags: flags},
	}
}

func describe(src ConfigSource, err error) error {
	return fmt.Errorf("load config from %s: %w", src.Name(), err)
}
