package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"singletask/backend/todoist"
	"singletask/backend/unsplash"
	"singletask/internal/cache"
	"singletask/internal/config"
	"singletask/internal/process"
	"singletask/internal/shutdown"
	"singletask/internal/store"
	"singletask/internal/utils"
)

// Version and Commit are set at build time
var (
	Version = "dev"
	Commit  = "none"
)

// EnvToken supplies --token when the flag is not given
const EnvToken = "SINGLETASK_TOKEN"

const shutdownTimeout = 5 * time.Second

// Config holds injectable settings, mostly for tests
type Config struct {
	Verbose    bool
	ConfigPath string         // config file; empty uses the XDG default
	Settings   *config.Config // preloaded settings; skips reading ConfigPath
	Store      store.Store    // cache store; nil opens one from Settings
	Now        func() time.Time
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewSingleTask(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

func outputErrorJSON(err error, w io.Writer) {
	out := map[string]interface{}{"error": err.Error()}
	var typed *utils.Error
	if errors.As(err, &typed) {
		out["kind"] = string(typed.Kind)
		out["status"] = typed.StatusCode()
	}
	data, _ := json.Marshal(out)
	_, _ = fmt.Fprintln(w, string(data))
}

// NewSingleTask creates the root command with injectable IO
func NewSingleTask(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:           "singletask",
		Short:         "Show one Todoist task at a time",
		Long:          "singletask shows the next task from a Todoist filter, caching the list between runs.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/singletask/config.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "enable debug logging")

	cmd.AddCommand(newNextCmd(stdout, stderr, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintf(stdout, "singletask\nVersion: %s\nCommit: %s\n", Version, Commit)
			return nil
		},
	}
}

func newNextCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next task for a filter",
		Long: `Show the next task for a Todoist filter.

Filters may be combined with commas; each part is queried separately and the
results are merged by due date. --complete closes a task before showing the
next one; --skip hides a task until the cached list is refreshed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				token = os.Getenv(EnvToken)
			}
			filter, _ := cmd.Flags().GetString("filter")
			complete, _ := cmd.Flags().GetString("complete")
			skip, _ := cmd.Flags().GetString("skip")
			jsonOutput, _ := cmd.Flags().GetBool("json")
			configPath, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")

			settings, err := loadSettings(cfg, configPath)
			if err != nil {
				return err
			}
			utils.SetVerboseMode(verbose || cfg.Verbose || settings.Logging.Verbose)
			utils.SetOutput(stderr)

			return runNext(stdout, cfg, settings, process.Request{
				Token:          token,
				Filter:         filter,
				CompleteTaskID: complete,
				SkipTaskID:     skip,
			}, jsonOutput)
		},
	}

	cmd.Flags().String("token", "", "Todoist API token (or "+EnvToken+")")
	cmd.Flags().StringP("filter", "f", "", "Todoist filter, e.g. \"today,overdue\"")
	cmd.Flags().String("complete", "", "task ID to complete first")
	cmd.Flags().String("skip", "", "task ID to skip")
	cmd.Flags().Bool("json", false, "output as JSON")

	return cmd
}

func loadSettings(cfg *Config, configPath string) (*config.Config, error) {
	if cfg.Settings != nil {
		return cfg.Settings, nil
	}
	if configPath == "" {
		configPath = cfg.ConfigPath
	}
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

func runNext(stdout io.Writer, cfg *Config, settings *config.Config, req process.Request, jsonOutput bool) (err error) {
	mgr := shutdown.NewManager()
	mgr.Listen()
	defer mgr.StopListening()
	defer func() {
		mgr.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := mgr.Wait(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	st := cfg.Store
	if st == nil {
		st, err = openStore(settings)
		if err != nil {
			return err
		}
		mgr.RegisterCleanup("cache store", func(context.Context) error {
			return st.Close()
		})
	}

	timeout := settings.GetHTTPTimeout()
	tasks := todoist.New(todoist.Config{BaseURL: settings.Todoist.BaseURL, Timeout: timeout})
	mgr.RegisterCleanup("todoist client", func(context.Context) error {
		return tasks.Close()
	})
	images := unsplash.New(unsplash.Config{
		APIKey:  settings.Unsplash.APIKey,
		BaseURL: settings.Unsplash.BaseURL,
		Live:    settings.IsProduction(),
		Timeout: timeout,
	})

	var opts []process.Option
	if cfg.Now != nil {
		opts = append(opts, process.WithClock(cfg.Now))
	}
	p := process.New(cache.New(st, settings.GetFreshWindow()), tasks, images, opts...)

	page, err := p.Process(mgr.Context(), req)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputPageJSON(stdout, page)
	}
	renderPage(stdout, page, isTerminal(stdout))
	return nil
}

func openStore(settings *config.Config) (store.Store, error) {
	if settings.Cache.Backend == config.CacheBackendMemory {
		return store.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(settings.Cache.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return store.NewSQLite(settings.Cache.Path)
}

// =============================================================================
// Output
// =============================================================================

type pageJSON struct {
	*process.Page
	CompletionError string `json:"completion_error,omitempty"`
}

func outputPageJSON(w io.Writer, page *process.Page) error {
	out := pageJSON{Page: page}
	if page.CompletionErr != nil {
		out.CompletionError = page.CompletionErr.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// colorClassStyles maps page color classes to terminal colors
var colorClassStyles = map[string]lipgloss.Color{
	"has-text-white":   lipgloss.Color("15"),
	"has-text-primary": lipgloss.Color("14"),
	"has-text-warning": lipgloss.Color("11"),
	"has-text-danger":  lipgloss.Color("9"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderPage(w io.Writer, page *process.Page, styled bool) {
	paint := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	nav := make([]string, len(page.Navigation))
	for i, link := range page.Navigation {
		nav[i] = link.Name
	}
	_, _ = fmt.Fprintf(w, "%s · %s\n\n", paint(titleStyle, strings.Join(nav, " ")), page.Title)

	if page.NoTask {
		_, _ = fmt.Fprintln(w, "No tasks left for this filter.")
	} else {
		renderTask(w, page, paint)
	}

	if page.Image != nil && page.Image.User.Name != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", paint(mutedStyle, fmt.Sprintf("Photo by %s (%s)", page.Image.User.Name, page.Image.Links.HTML)))
	}
}

func renderTask(w io.Writer, page *process.Page, paint func(lipgloss.Style, string) string) {
	t := page.Task
	content := lipgloss.NewStyle().Bold(true).Foreground(colorClassStyles[page.ColorClass])
	_, _ = fmt.Fprintf(w, "%s\n", paint(content, t.Content))
	if t.Description != "" {
		_, _ = fmt.Fprintf(w, "%s\n", t.Description)
	}

	details := []string{"Priority: " + t.Priority.String()}
	if t.Due != nil {
		due := t.Due.String
		if due == "" {
			due = t.Due.Date
		}
		details = append(details, "Due: "+due)
	}
	if len(t.Labels) > 0 {
		details = append(details, "Labels: "+strings.Join(t.Labels, ", "))
	}
	_, _ = fmt.Fprintf(w, "%s\n", paint(mutedStyle, strings.Join(details, " · ")))
	_, _ = fmt.Fprintf(w, "%s\n", paint(mutedStyle, "ID: "+t.ID))

	if remaining := len(page.Tasks) - 1; remaining > 0 {
		_, _ = fmt.Fprintf(w, "\n%d more after this one\n", remaining)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

