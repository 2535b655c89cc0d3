package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/config"
	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/progress"
	"github.com/felixgeelhaar/apporte/internal/session"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
	"github.com/felixgeelhaar/apporte/internal/tui"
)

// App is everything a command needs to talk to the API. Each command run
// builds its own; nothing is shared between runs.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Tokens  *tokenstore.Store
	Client  *platform.Client
	Session *session.Manager
	Styles  tui.Styles

	out         io.Writer
	errOut      io.Writer
	interactive bool
	closers     []func() error
}

// newApp wires config, logging, token storage, the HTTP client and the
// session manager for cmd.
func newApp(cmd *cobra.Command) (*App, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app := &App{
		Config:      cfg,
		Logger:      newLogger(cfg, cmd.ErrOrStderr()),
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		interactive: !cc.NoInput && tui.ShouldPrompt(),
	}
	app.Styles = outputStyles(cc)
	log.SetDefaultLogger(app.Logger)

	storage, closer, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	app.Tokens = tokenstore.New(ctx, storage, tokenstore.WithLogger(app.Logger))

	clientOpts := []platform.Option{platform.WithLogger(app.Logger)}
	if cfg.RequestTimeout > 0 {
		clientOpts = append(clientOpts, platform.WithTimeout(cfg.RequestTimeout))
	}
	app.Client = platform.NewClient(cfg.APIURL, app.Tokens, clientOpts...)
	app.Session = session.NewWithClient(app.Client, session.WithLogger(app.Logger))

	app.watchExpiry()

	app.Logger.Debug("command ready",
		"command", cmd.CommandPath(),
		"api_url", app.Client.BaseURL(),
		"storage", app.Tokens.StorageName(),
	)
	return app, nil
}

// watchExpiry prints a notice the first time the API rejects a session
// this run held. A 401 on a fresh login attempt stays silent.
func (a *App) watchExpiry() {
	var held atomic.Bool
	held.Store(a.Tokens.Token() != "")

	a.Session.Subscribe(func(s session.State) {
		if s == session.Authenticated {
			held.Store(true)
		}
	})

	var once sync.Once
	a.Client.OnUnauthorized(func() {
		if !held.Swap(false) {
			return
		}
		once.Do(func() {
			fmt.Fprintln(a.errOut, a.Styles.Warning.Render("Session expired. Run 'apporte auth login' to sign in again."))
		})
	})
}

// Close releases storage connections.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Logger.WithError(err).Debug("close failed")
		}
	}
}

// Out is where command output goes.
func (a *App) Out() io.Writer {
	return a.out
}

// Printf writes formatted command output.
func (a *App) Printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// Println writes a line of command output.
func (a *App) Println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// Interactive reports whether prompts may be shown.
func (a *App) Interactive() bool {
	return a.interactive
}

// Busy shows a spinner on stderr while fn runs. The spinner only appears
// when prompting is allowed, so scripted runs keep a clean stderr.
func (a *App) Busy(label string, fn func() error) error {
	indicator := progress.NewIndicator(progress.Config{
		Writer:      a.errOut,
		ShowSpinner: a.interactive,
	})
	return indicator.Run(label, fn)
}

// CheckAuth resolves the stored token, with a spinner.
func (a *App) CheckAuth(ctx context.Context) error {
	return a.Busy("Checking session", func() error {
		return a.Session.CheckAuth(ctx)
	})
}

// RequireSession gates protected commands: it resolves the stored token
// and fails unless the result is an authenticated session.
func (a *App) RequireSession(ctx context.Context) error {
	if err := a.CheckAuth(ctx); err != nil {
		return requestError("session check", err)
	}
	if !a.Session.IsAuthenticated() {
		return apperrors.NewNotAuthenticatedError()
	}
	return nil
}

// outputStyles drops color for --no-color and NO_COLOR.
func outputStyles(cc *CommandContext) tui.Styles {
	if cc.NoColor || os.Getenv("NO_COLOR") != "" {
		return tui.PlainStyles()
	}
	return tui.DefaultStyles()
}

// newLogger builds the command logger. Debug level switches to the
// development configuration, which adds source locations.
func newLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logCfg := log.DefaultConfig()
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		if level == log.LevelDebug {
			logCfg = log.DevelopmentConfig()
		}
		logCfg.Level = level
	}
	logCfg.Format = log.ParseFormat(cfg.Logging.Format)
	logCfg.Output = log.NewOutput(w)
	return log.New(logCfg)
}

// openStorage returns the durable token backend selected by cfg and a
// closer for any connection it opened.
func openStorage(ctx context.Context, cfg config.StorageConfig) (tokenstore.Storage, func() error, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return tokenstore.NewMemoryStorage(), nil, nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, apperrors.Wrap(apperrors.ErrCodeStoreBackend,
				fmt.Sprintf("cannot reach redis at %s", cfg.RedisAddr), err).
				WithSuggestion("Check storage.redis_addr with 'apporte config get storage.redis_addr'").
				WithSuggestion("Use --storage file to keep the session on disk instead")
		}

		var opts []tokenstore.RedisOption
		if cfg.RedisPrefix != "" {
			opts = append(opts, tokenstore.WithPrefix(cfg.RedisPrefix))
		}
		if cfg.RedisTTL > 0 {
			opts = append(opts, tokenstore.WithTTL(cfg.RedisTTL))
		}
		return tokenstore.NewRedisStorage(client, opts...), client.Close, nil

	default:
		return tokenstore.NewFileStorage(cfg.Path), nil, nil
	}
}
