package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

const (
	cfgName     = "application"
	testCfgName = "application_test"
	envPrefix   = "ORDERDESK"
)

// ErrConfiguration marks a configuration problem that must stop the process
// before any request is served or any database call is made.
var ErrConfiguration = errors.New("configuration error")

var (
	cfg     *viper.Viper
	cfgErr  error
	cfgFile string
	once    sync.Once
)

// defaults are applied below the config file and the environment.
var defaults = map[string]any{
	"server.engine":                "gin",
	"server.port":                  8585,
	"server.recent_limit":          50,
	"server.rate_limit":            1.0,
	"server.burst":                 5,
	"log.level":                    "info",
	"log.format":                   "console",
	"datasource.driver":            "",
	"datasource.url":               "",
	"datasource.user":              "",
	"datasource.password":          "",
	"datasource.host":              "",
	"datasource.max_open_conns":    10,
	"datasource.max_idle_conns":    2,
	"datasource.conn_max_lifetime": "5m",
}

// SetConfigFile makes Config read the given file instead of searching for application.yml.
// It must be called before the first call to Config.
func SetConfigFile(path string) {
	cfgFile = path
}

// Config loads the application configuration once per process.
//
// Rules:
//  1. A file set with SetConfigFile wins.
//  2. Under `go test` application_test.yml is searched, otherwise application.yml.
//  3. It searches the project root, the working directory and their ./config.
//  4. A missing file is not an error; defaults and the environment still apply.
func Config() mo.Result[*viper.Viper] {
	once.Do(func() {
		cfg, cfgErr = Load(cfgFile)
	})
	return lo.Ternary(cfgErr != nil, mo.Err[*viper.Viper](cfgErr), mo.Ok(cfg))
}

// Load builds a fresh configuration. An empty file means "search the default locations".
//
// Every key can be overridden from the environment with the ORDERDESK_ prefix and
// '.' replaced by '_' (ORDERDESK_DATASOURCE_URL). NEON_DATABASE_URL is also accepted
// for datasource.url.
func Load(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("datasource.url", envPrefix+"_DATASOURCE_URL", "NEON_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("%w: bind env: %w", ErrConfiguration, err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, file, err)
		}
		return v, nil
	}

	addDefaultConfigPaths(v)
	v.SetConfigName(lo.Ternary(isTestProcess(), testCfgName, cfgName))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("%w: read config: %w", ErrConfiguration, err)
	}
	return v, nil
}

// addDefaultConfigPaths registers the config search paths: the project root
// (nearest parent directory holding go.mod) and its config dir, then the
// working directory and its config dir.
func addDefaultConfigPaths(v *viper.Viper) {
	cwd, err := os.Getwd()
	if err != nil {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		return
	}
	if root, ok := findProjectRoot(cwd); ok {
		v.AddConfigPath(root)
		v.AddConfigPath(filepath.Join(root, "config"))
	}
	v.AddConfigPath(cwd)
	v.AddConfigPath(filepath.Join(cwd, "config"))
}

// findProjectRoot walks upward from start until it finds a directory containing a go.mod.
func findProjectRoot(start string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// isTestProcess detects whether we are running under `go test`.
func isTestProcess() bool {
	for _, a := range os.Args {
		if strings.HasPrefix(a, "-test.") {
			return true
		}
	}
	const maxFrames = 256
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if strings.HasSuffix(f.File, "_test.go") {
			return true
		}
		if !more {
			break
		}
	}
	return false
}
