// Package main is the entry point for the context-hooks CLI.
//
// The CLI replays captured payloads through the same hook chain a host
// gateway runs, so a config can be checked offline:
//
//	context-hooks apply    request.json   # pre-call chain, prints the forwarded request
//	context-hooks respond  response.json  # post-call chain, prints the returned response
//	context-hooks validate                # load config, print chain order
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/gateway"
	"github.com/compresr/context-hooks/internal/hooks"
	"github.com/compresr/context-hooks/internal/monitoring"
)

// Version is set at build time via ldflags
var Version = "v0.1.0"

// defaultEmbeddedConfig is used when no config file is found.
const defaultEmbeddedConfig = "hooks"

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/context-hooks/.env first
	configEnv := filepath.Join(homeDir, ".config", "context-hooks", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()
	setupBootstrapLogging()

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "apply":
		err = runApply(os.Args[2:], os.Stdout)
	case "respond":
		err = runRespond(os.Args[2:], os.Stdout)
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "configs":
		err = runListConfigs(os.Stdout)
	case "version", "-v", "--version":
		fmt.Printf("context-hooks %s\n", Version)
		return
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

// commonFlags are shared by apply and respond.
type commonFlags struct {
	configPath string
	provider   string
	debug      bool
	metrics    bool
	pretty     bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file (or embedded config name)")
	fs.StringVar(&c.provider, "provider", "", "provider hint: openai, anthropic, ollama")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&c.metrics, "metrics", false, "dump hook metrics to stderr when done")
	fs.BoolVar(&c.pretty, "pretty", false, "indent the JSON output")
}

// runApply runs the pre-call chain over a request payload.
func runApply(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	router, err := buildRouter(flags)
	if err != nil {
		return err
	}
	defer router.Close()

	body, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	req := router.NewRequest(flags.provider, body)
	out := router.PreCall(context.Background(), req)

	if err := writeOutput(stdout, out.Body, flags.pretty); err != nil {
		return err
	}
	return dumpMetrics(router, flags.metrics)
}

// runRespond runs the post-call chain over a response payload.
func runRespond(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("respond", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	requestPath := fs.String("request", "", "request payload the response belongs to (for model and provider)")
	status := fs.Int("status", 200, "HTTP status reported by the backend")
	if err := fs.Parse(args); err != nil {
		return err
	}

	router, err := buildRouter(flags)
	if err != nil {
		return err
	}
	defer router.Close()

	body, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	// Responses usually echo the model, so they can stand in for the request.
	reqBody := body
	if *requestPath != "" {
		if reqBody, err = os.ReadFile(*requestPath); err != nil {
			return fmt.Errorf("failed to read request file '%s': %w", *requestPath, err)
		}
	}

	req := router.NewRequest(flags.provider, reqBody)
	var callErr error
	if *status >= 400 {
		callErr = fmt.Errorf("backend returned status %d", *status)
	}
	out := router.PostCall(context.Background(), router.NewResponse(req, *status, body, callErr))

	if err := writeOutput(stdout, out.Body, flags.pretty); err != nil {
		return err
	}
	return dumpMetrics(router, flags.metrics)
}

// runValidate loads the config and prints the resulting chain.
func runValidate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (or embedded config name)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Discard interaction records: validate only reports the chain.
	router := gateway.NewRouter(cfg, gateway.Options{Sink: io.Discard})
	defer router.Close()

	fmt.Fprintf(stdout, "config: %s\n", source)
	for _, h := range router.Chain() {
		state := "disabled"
		if h.Enabled() {
			state = "enabled"
		}
		fmt.Fprintf(stdout, "  %3d  %-16s %s%s\n", h.Priority(), h.Name(), state, callPoints(h))
	}
	return nil
}

// callPoints describes which extension points a hook is registered at.
func callPoints(h hooks.Hook) string {
	_, pre := h.(hooks.PreCallHook)
	_, post := h.(hooks.PostCallHook)
	switch {
	case pre && post:
		return "  (pre_call, post_call)"
	case pre:
		return "  (pre_call)"
	case post:
		return "  (post_call)"
	default:
		return ""
	}
}

// runListConfigs prints the embedded config names.
func runListConfigs(stdout io.Writer) error {
	names, err := listEmbeddedConfigs()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

// buildRouter loads config, sets up logging and builds the hook chain.
func buildRouter(flags commonFlags) (*gateway.Router, error) {
	cfg, source, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	setupLogging(cfg, flags.debug)
	log.Debug().Str("config", source).Str("version", Version).Msg("configuration loaded")

	return gateway.NewRouter(cfg, gateway.Options{}), nil
}

// loadConfig resolves and parses the config.
// Checks: user flag (file, then embedded name) -> filesystem locations -> embedded default.
// Returns the parsed config and a source description.
func loadConfig(userConfig string) (*config.Config, string, error) {
	data, source, err := resolveConfig(userConfig)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromBytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", source, err)
	}
	return cfg, source, nil
}

func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err == nil {
			return data, userConfig, nil
		}
		if embedded, embErr := getEmbeddedConfig(userConfig); embErr == nil {
			return embedded, "(embedded) " + userConfig, nil
		}
		return nil, "", fmt.Errorf("config file not found: %s", userConfig)
	}

	var searchPaths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "context-hooks", "hooks.yaml"))
	}
	searchPaths = append(searchPaths, "configs/hooks.yaml", "hooks.yaml")

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	data, err := getEmbeddedConfig(defaultEmbeddedConfig)
	if err != nil {
		return nil, "", errors.New("no config file found. Specify --config path")
	}
	return data, "(embedded) " + defaultEmbeddedConfig, nil
}

// readInput reads a payload from a file, or stdin for "" and "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload '%s': %w", path, err)
	}
	return data, nil
}

// writeOutput prints a payload, optionally indented.
func writeOutput(w io.Writer, body []byte, pretty bool) error {
	if pretty && gjson.ValidBytes(body) {
		body = []byte(gjson.GetBytes(body, "@pretty").Raw)
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if len(body) == 0 || body[len(body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// dumpMetrics writes the hook counters to stderr when requested.
func dumpMetrics(router *gateway.Router, enabled bool) error {
	if !enabled {
		return nil
	}
	return router.Metrics().WriteText(os.Stderr)
}

// setupBootstrapLogging configures zerolog before any config is loaded.
func setupBootstrapLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// setupLogging installs the configured operator logger.
// Without an explicit format, a terminal gets console output and anything
// else gets JSON lines.
func setupLogging(cfg *config.Config, debug bool) {
	lc := cfg.Monitoring.LoggerConfig()
	if lc.Format == "" {
		lc.Format = monitoring.FormatJSON
		if term.IsTerminal(int(os.Stderr.Fd())) {
			lc.Format = monitoring.FormatConsole
		}
	}
	if debug {
		lc.Level = zerolog.LevelDebugValue
	}
	monitoring.Global(lc)
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("context-hooks - message hooks for LLM gateways")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  context-hooks <command> [options] [payload.json | -]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  apply        Run the pre-call chain over a request payload")
	fmt.Println("  respond      Run the post-call chain over a response payload")
	fmt.Println("  validate     Load a config and print the hook chain")
	fmt.Println("  configs      List embedded configs")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Options (apply, respond):")
	fmt.Println("  --config FILE        Config file or embedded config name (default: search, then embedded 'hooks')")
	fmt.Println("  --provider NAME      openai, anthropic or ollama (default: from model prefix)")
	fmt.Println("  --pretty             Indent the JSON output")
	fmt.Println("  --metrics            Dump hook counters to stderr")
	fmt.Println("  --debug              Enable debug logging")
	fmt.Println()
	fmt.Println("Options (respond):")
	fmt.Println("  --request FILE       Request payload the response belongs to")
	fmt.Println("  --status N           Backend HTTP status (default: 200)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  context-hooks apply request.json")
	fmt.Println("  cat request.json | context-hooks apply --config passthrough -")
	fmt.Println("  context-hooks respond --request request.json --status 500 error.json")
}
