package configutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${NAME} references with environment values. Unset
// variables expand to the empty string and are reported once per name.
func ExpandEnv(contents []byte) []byte {
	warned := map[string]bool{}
	return envRef.ReplaceAllFunc(contents, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		value, ok := os.LookupEnv(name)
		if !ok && !warned[name] {
			warned[name] = true
			slog.Warn("config references unset environment variable", "name", name)
		}
		return []byte(value)
	})
}

// LoadDotenv loads each existing .env style file into the process
// environment without overriding variables that are already set.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		slog.Debug("loaded environment file", "path", p)
	}
	return nil
}

// Decode parses contents according to ext, json5 (and json) or yaml. yaml
// documents are routed through json so `json` struct tags apply to both.
func Decode[T any](ext string, contents []byte) (T, error) {
	var out T
	switch strings.ToLower(ext) {
	case "yaml", "yml":
		var generic any
		err := yaml.Unmarshal(contents, &generic)
		if err != nil {
			return out, err
		}
		buff, err := json.Marshal(generic)
		if err != nil {
			return out, err
		}
		err = json.Unmarshal(buff, &out)
		return out, err
	default:
		err := json5.Unmarshal(contents, &out)
		return out, err
	}
}

func readLayer[T any](path, ext string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	out, err = Decode[T](ext, ExpandEnv(contents))
	if err != nil {
		return out, false, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func ReadConfig[T any](name string) (T, error) {
	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	out, foundDefault, err := readLayer[T](name, ext)
	if err != nil {
		return out, err
	}

	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
	override, foundLocal, err := readLayer[T](localFilepath, ext)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaultOut, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}
