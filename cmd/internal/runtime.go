// Package internal wires configuration, logging, storage and HTTP engines for the orderdesk commands.
package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kcmvp/orderdesk/app"
	"github.com/kcmvp/orderdesk/intake"
	"github.com/kcmvp/orderdesk/store"
	"github.com/kcmvp/orderdesk/web"
	"github.com/kcmvp/orderdesk/web/echoweb"
	"github.com/kcmvp/orderdesk/web/fiberweb"
	"github.com/kcmvp/orderdesk/web/ginweb"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type runtimeKey struct{}

// Engines lists the HTTP engines serve can run.
var Engines = []string{"gin", "echo", "fiber"}

// Runtime is what every command needs: configuration, a logger and the datasource.
type Runtime struct {
	Config     *viper.Viper
	Logger     zerolog.Logger
	DataSource store.DataSource
}

// Bootstrap loads the configuration and validates the datasource. Any failure is
// an app.ErrConfiguration and no database has been contacted yet.
func Bootstrap(configFile string, logOut io.Writer) (*Runtime, error) {
	v, err := app.Load(configFile)
	if err != nil {
		return nil, err
	}
	ds, err := store.FromConfig(v)
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: v, Logger: app.NewLogger(v, logOut), DataSource: ds}, nil
}

func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// FromContext returns the Runtime stored by WithRuntime. It panics when there is none.
func FromContext(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	lo.Assertf(ok, "orderdesk: runtime is not initialized")
	return rt
}

// OpenStore connects to the database and makes sure the orders table exists.
func (rt *Runtime) OpenStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, rt.DataSource, rt.Logger)
	if err != nil {
		return nil, err
	}
	if err = st.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Service builds the pipeline over st.
func (rt *Runtime) Service(st *store.Store) *intake.Service {
	return intake.NewService(st, rt.Logger)
}

// NewServer mounts the routes on the named engine.
func NewServer(engine string, h *web.Handler) (web.Server, error) {
	switch strings.ToLower(engine) {
	case "gin":
		return ginweb.New(h), nil
	case "echo":
		return echoweb.New(h), nil
	case "fiber":
		return fiberweb.New(h), nil
	}
	return nil, fmt.Errorf("%w: unknown engine %q, expected one of %s", app.ErrConfiguration, engine, strings.Join(Engines, ", "))
}

// Fail prints err in red on stderr and exits with status 1.
func Fail(err error) {
	_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
