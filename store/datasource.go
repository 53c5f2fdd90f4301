package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/kcmvp/orderdesk/app"
	"github.com/spf13/viper"
	"github.com/tidwall/match"
)

const (
	DSKey       = "datasource"
	UserKey     = "${user}"
	PasswordKey = "${password}"
	HostKey     = "${host}"
)

// Supported driver names, as registered with database/sql.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite3"
)

// driverPatterns infer the driver from the shape of a connection string.
// The first matching pattern wins.
var driverPatterns = []struct {
	pattern string
	driver  string
}{
	{"postgres://*", Postgres},
	{"postgresql://*", Postgres},
	{"*dbname=*", Postgres},
	{"*@tcp(*)/*", MySQL},
	{"*@unix(*)/*", MySQL},
	{"file:*", SQLite},
	{":memory:", SQLite},
	{"*.db", SQLite},
	{"*.sqlite", SQLite},
	{"*.sqlite3", SQLite},
}

// DataSource describes how to reach the order database.
type DataSource struct {
	Driver          string
	URL             string
	User            string
	Password        string
	Host            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// FromConfig reads the datasource section of v.
// A missing url, an unresolved placeholder or an unknown driver is reported as app.ErrConfiguration.
func FromConfig(v *viper.Viper) (DataSource, error) {
	key := func(name string) string { return DSKey + "." + name }
	ds := DataSource{
		Driver:          strings.TrimSpace(v.GetString(key("driver"))),
		URL:             strings.TrimSpace(v.GetString(key("url"))),
		User:            v.GetString(key("user")),
		Password:        v.GetString(key("password")),
		Host:            v.GetString(key("host")),
		MaxOpenConns:    v.GetInt(key("max_open_conns")),
		MaxIdleConns:    v.GetInt(key("max_idle_conns")),
		ConnMaxLifetime: v.GetDuration(key("conn_max_lifetime")),
	}
	if _, err := ds.DSNChecked(); err != nil {
		return DataSource{}, fmt.Errorf("%w: %w", app.ErrConfiguration, err)
	}
	if _, err := ds.DriverName(); err != nil {
		return DataSource{}, fmt.Errorf("%w: %w", app.ErrConfiguration, err)
	}
	return ds, nil
}

// DSNChecked returns the final connection string for sqlx.Open and validates placeholder usage.
//
// Go database drivers don't share a single DSN format, so the url is the driver specific
// DSN, optionally containing placeholders. A placeholder whose value is blank is an error,
// so a misconfigured process never connects with blank credentials.
func (ds DataSource) DSNChecked() (string, error) {
	if ds.URL == "" {
		return "", fmt.Errorf("dsn requires url")
	}
	if strings.Contains(ds.URL, UserKey) && ds.User == "" {
		return "", fmt.Errorf("dsn requires user")
	}
	if strings.Contains(ds.URL, PasswordKey) && ds.Password == "" {
		return "", fmt.Errorf("dsn requires password")
	}
	if strings.Contains(ds.URL, HostKey) && ds.Host == "" {
		return "", fmt.Errorf("dsn requires host")
	}
	return ds.DSN(), nil
}

// DSN substitutes ${user}, ${password} and ${host} in the url. Nothing else is touched.
func (ds DataSource) DSN() string {
	dsn := strings.ReplaceAll(ds.URL, UserKey, ds.User)
	dsn = strings.ReplaceAll(dsn, PasswordKey, ds.Password)
	return strings.ReplaceAll(dsn, HostKey, ds.Host)
}

// DriverName returns the configured driver, or infers it from the url.
func (ds DataSource) DriverName() (string, error) {
	switch ds.Driver {
	case Postgres, MySQL, SQLite:
		return ds.Driver, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported driver %q", ds.Driver)
	}
	target, _, _ := strings.Cut(ds.URL, "?")
	for _, p := range driverPatterns {
		if match.Match(ds.URL, p.pattern) || match.Match(target, p.pattern) {
			return p.driver, nil
		}
	}
	return "", fmt.Errorf("cannot infer driver from url %q", redact(ds.URL))
}

// inMemory reports whether the sqlite database lives only inside one connection.
func (ds DataSource) inMemory() bool {
	return strings.Contains(ds.URL, ":memory:") && !strings.Contains(ds.URL, "cache=shared")
}

// redact hides everything between the scheme and the host of a url.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if _, host, found := strings.Cut(rest, "@"); found {
		return scheme + "://***@" + host
	}
	return url
}
