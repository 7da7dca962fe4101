// Command wsman is a WS-Management command line client.
//
// Settings come from flags, WSMAN_* environment variables and a YAML config
// file (~/.wsman.yaml or --config), in that order of precedence.
//
// Password can be provided via:
//   - --password flag (least secure, visible in process list)
//   - WSMAN_PASSWORD environment variable (recommended)
//   - password key of the config file
//   - terminal prompt (if none of the above is set)
//
// Usage:
//
//	wsman --host <hostname> [flags] <command>
//
// Examples:
//
//	export WSMAN_PASSWORD='calvin'
//	wsman --host idrac.example.com --tls -u root identify
//	wsman --host idrac.example.com --tls -u root enum \
//	    --filter "select * from DCIM_PowerSupplyView"
//	wsman --host srv01 --auth negotiate -u admin get \
//	    http://schemas.microsoft.com/wbem/wsman/1/wmi/root/cimv2/Win32_Service -s Name=WinRM
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/smnsjas/go-wsman/client"
	wslog "github.com/smnsjas/go-wsman/internal/log"
	"github.com/smnsjas/go-wsman/wsman"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v *viper.Viper

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfgFile string

	logger    *slog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry

	// prompt reads a password when none is configured. Nil disables it.
	prompt func(user string) (string, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{
		v:      viper.New(),
		in:     in,
		out:    out,
		errOut: errOut,
		logger: slog.New(slog.DiscardHandler),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.prompt = func(user string) (string, error) {
			fmt.Fprintf(errOut, "Password for %s: ", user)
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(errOut)
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(pw), nil
		}
	}
	return a
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"connection-timeout": "connection_timeout",
	"receive-timeout":    "receive_timeout",
	"max-elements":       "max_elements",
	"max-envelope-size":  "max_envelope_size",
	"protocol":           "version",
	"krb5-conf":          "krb5_conf",
	"rate-limit":         "rate_limit",
	"rate-burst":         "rate_burst",
	"log-level":          "log_level",
	"log-file":           "log_file",
	"metrics-file":       "metrics_file",
}

func (a *app) rootCommand() *cobra.Command {
	defaults := client.DefaultConfig()

	root := &cobra.Command{
		Use:   "wsman",
		Short: "WS-Management command line client",
		Long: `wsman talks to WS-Management services such as Windows WinRM, Dell iDRAC
and Openwsman. It supports Identify, Get, Put, Enumerate and Pull.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ~/.wsman.yaml)")
	pf.String("host", "", "target host name, IP address or full endpoint URL")
	pf.Int("port", 0, "port (default 5985 for HTTP, 5986 for HTTPS)")
	pf.String("path", defaults.Path, "URL path of the WSMan service")
	pf.Bool("tls", false, "use HTTPS")
	pf.Bool("insecure", false, "skip TLS certificate verification")
	pf.Duration("timeout", defaults.Timeout, "timeout for each HTTP exchange")
	pf.Duration("connection-timeout", 0, "connection setup timeout (0 = no limit)")
	pf.Duration("receive-timeout", 0, "response wait timeout, also sent as OperationTimeout (0 = no limit)")
	pf.String("protocol", defaults.Version, `WS-Management protocol version, "1.0" or "1.2"`)
	pf.Int("max-elements", defaults.MaxElements, "maximum items per Enumerate/Pull response")
	pf.Int("max-envelope-size", 0, "maximum response envelope size in bytes (0 = server default)")
	pf.String("auth", string(defaults.AuthType), "authentication: none, basic, digest, negotiate")
	pf.StringP("username", "u", "", "user name")
	pf.StringP("password", "p", "", "password (use WSMAN_PASSWORD instead)")
	pf.String("domain", "", "NTLM domain")
	pf.String("realm", "", "Kerberos realm (selects Kerberos for negotiate)")
	pf.String("krb5-conf", "", "path to krb5.conf")
	pf.String("keytab", "", "path to a Kerberos keytab")
	pf.String("ccache", "", "path to a Kerberos credential cache")
	pf.String("spn", "", "service principal name (default HTTP/<host>)")
	pf.String("proxy", "", `proxy URL ("direct" disables proxying)`)
	pf.Float64("rate-limit", 0, "maximum requests per second (0 = unlimited)")
	pf.Int("rate-burst", defaults.RateBurst, "request burst above the rate limit")
	pf.StringP("output", "o", "text", "output format: text, yaml, xml")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error (empty = no logging); trace logs SOAP envelopes")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	pf.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	pf.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		// BindPFlag only fails for a nil flag.
		_ = a.v.BindPFlag(key, f)
	})

	root.AddCommand(
		a.identifyCommand(),
		a.getCommand(),
		a.putCommand(),
		a.enumCommand(),
		a.pullCommand(),
	)
	return root
}

// run executes one command line and releases logging and metrics
// resources afterwards, whether or not the command succeeded.
func (a *app) run(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	if terr := a.teardown(); terr != nil {
		fmt.Fprintln(a.errOut, "Error:", terr)
		if err == nil {
			err = terr
		}
	}
	return err
}

// setup loads the configuration and prepares logging and metrics.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".wsman")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("WSMAN")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := a.setupLogging(); err != nil {
		return err
	}
	if a.v.GetString("metrics_file") != "" {
		a.registry = prometheus.NewRegistry()
	}
	return nil
}

func (a *app) setupLogging() error {
	level := a.v.GetString("log_level")
	if level == "" {
		return nil
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	w := a.errOut
	if path := a.v.GetString("log_file"); path != "" {
		rf, err := wslog.NewRotatingFile(filepath.Clean(path), wslog.DefaultMaxSize, wslog.DefaultMaxBackups)
		if err != nil {
			return err
		}
		a.logCloser = rf
		w = rf
	}
	a.logger = slog.New(wslog.NewRedactingHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: traceLevelName,
	})))
	return nil
}

// parseLevel accepts the slog level names plus "trace", which logs whole
// SOAP envelopes.
func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return wsman.LevelTrace, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func traceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == wsman.LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

func (a *app) teardown() error {
	var errs []error
	if path := a.v.GetString("metrics_file"); path != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
		a.logCloser = nil
	}
	return errors.Join(errs...)
}

// config decodes the merged settings into a client configuration.
func (a *app) config() (client.Config, error) {
	cfg := client.DefaultConfig()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return client.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Password == "" && cfg.Username != "" && a.prompt != nil &&
		(cfg.AuthType == client.AuthBasic || cfg.AuthType == client.AuthDigest ||
			(cfg.AuthType == client.AuthNegotiate && cfg.Keytab == "" && cfg.CCache == "")) {
		pw, err := a.prompt(cfg.Username)
		if err != nil {
			return client.Config{}, err
		}
		cfg.Password = pw
	}
	return cfg, nil
}

// connect builds a client from the merged settings.
func (a *app) connect() (*client.Client, error) {
	host := a.v.GetString("host")
	if host == "" {
		return nil, errors.New("--host is required")
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	opts := []client.Option{client.WithLogger(a.logger)}
	if a.registry != nil {
		opts = append(opts, client.WithMetrics(wsman.NewMetrics(a.registry)))
	}
	a.logger.Debug("connecting", "host", host, "config", cfg)
	return client.New(host, cfg, opts...)
}

func (a *app) printer() (*printer, error) {
	return newPrinter(a.out, a.v.GetString("output"))
}
