package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// errNotSignedIn is returned by commands that need a session
var errNotSignedIn = errors.New("not signed in; run `moviectl login` first")

// RunnerOpts configures a Runner. Zero values fall back to the process streams
// and the default config path.
type RunnerOpts struct {
	ConfigPath string
	ServerURL  string
	Language   string
	Verbose    bool
	Out        io.Writer
	ErrOut     io.Writer
	In         io.Reader
}

// Runner holds what every command needs: the config, the API client and the state store
type Runner struct {
	opts    RunnerOpts
	cfgPath string
	cfg     *Config
	out     io.Writer
	errOut  io.Writer
	in      io.Reader
	reader  *bufio.Reader
	api     *client.Client
	store   *store.Store
	log     *zap.Logger
}

// NewRunner creates an unopened Runner
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{opts: opts, out: opts.Out, errOut: opts.ErrOut, in: opts.In}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	r.reader = bufio.NewReader(r.in)
	r.log = zap.NewNop()
	return r
}

// open loads the config, applies flag overrides and restores the cached session
func (r *Runner) open() error {
	path := r.opts.ConfigPath
	if path == "" {
		def, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = def
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if r.opts.ServerURL != "" {
		cfg.ServerURL = r.opts.ServerURL
	}
	if r.opts.Language != "" {
		cfg.Language = r.opts.Language
	}

	api, err := client.New(client.Options{BaseURL: cfg.ServerURL, Token: cfg.Token, Language: cfg.Language})
	if err != nil {
		return err
	}
	r.cfgPath, r.cfg, r.api = path, cfg, api
	r.store = store.New(api)
	if r.opts.Verbose {
		r.log = newActionLogger(r.errOut)
		r.store.Subscribe(r.logAction)
	}
	if cfg.Token != "" {
		r.store.Dispatch(store.SetUser(cfg.profile()))
	}
	return nil
}

// newActionLogger writes development-style console lines to w
func newActionLogger(w io.Writer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))
}

func (r *Runner) logAction(_ store.State, a store.Action) {
	fields := []zap.Field{zap.String("action", a.String())}
	if a.Err != "" {
		fields = append(fields, zap.String("error", a.Err))
	}
	r.log.Debug("store_dispatch", fields...)
}

func (r *Runner) signedIn() bool { return r.cfg.Token != "" }

// persistSession stores the client's token and the signed-in user
func (r *Runner) persistSession() error {
	r.cfg.Token = r.api.Token()
	r.cfg.setUser(r.store.State().Auth.User)
	return SaveConfig(r.cfgPath, r.cfg)
}

// sectionError reports the error recorded in the state tree, falling back to err
func sectionError(status store.Status, msg string, err error) error {
	if err == nil {
		return nil
	}
	if status == store.StatusFailed && msg != "" {
		return errors.New(msg)
	}
	return err
}

// prompt reads one line, without echo when secret and attached to a terminal
func (r *Runner) prompt(label string, secret bool) (string, error) {
	fmt.Fprintf(r.errOut, "%s: ", label)
	if secret {
		if f, ok := r.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(r.errOut)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
			}
			return string(b), nil
		}
	}
	line, err := r.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// valueOrPrompt returns v, asking for it when empty
func (r *Runner) valueOrPrompt(v, label string, secret bool) (string, error) {
	if v != "" {
		return v, nil
	}
	return r.prompt(label, secret)
}

func (r *Runner) run(ctx context.Context, t store.Thunk) error {
	return r.store.Run(ctx, t)
}
