package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gauravmishra2744/Awaaj/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = func() (string, error) { return config.DefaultDir(), nil }

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage awaaz configuration.

Running bare 'awaaz config' is the same as 'awaaz config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# awaaz configuration
# See: awaaz config show (for effective values and sources)
# Every key can be overridden with an AWAAZ_ env var, e.g. AWAAZ_AI_BASE_URL.

# SQLite database path
# db_path: {{ .DBPath }}

server:
  port: {{ .Port }}
  # Grace period for in-flight requests on shutdown
  shutdown_timeout: {{ .ShutdownTimeout }}

ai:
  # service (HTTP AI service), anthropic, or none
  provider: "{{ .Provider }}"
  base_url: "{{ .BaseURL }}"
  # Per-step timeout for classify, embed, and prioritize
  timeout: {{ .Timeout }}
  # Outbound requests per second to the AI service
  rate_limit: {{ .RateLimit }}
  # Minimum classifier score for a category
  threshold: {{ .Threshold }}

anthropic:
  # API key; ANTHROPIC_API_KEY is used when empty
  # api_key: ""
  model: "{{ .Model }}"

# Outgoing email. Leave host empty to log notifications instead of sending.
smtp:
  host: "{{ .SMTPHost }}"
  port: {{ .SMTPPort }}
  from: "{{ .SMTPFrom }}"
  # Give up on a delivery after this long
  timeout: {{ .SMTPTimeout }}
  # username: ""
  # password: ""
`

type configTemplateData struct {
	DBPath          string
	Port            int
	ShutdownTimeout string
	Provider        string
	BaseURL         string
	Timeout         string
	RateLimit       float64
	Threshold       float64
	Model           string
	SMTPHost        string
	SMTPPort        int
	SMTPFrom        string
	SMTPTimeout     string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:          viper.GetString("db_path"),
		Port:            viper.GetInt("server.port"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout").String(),
		Provider:        viper.GetString("ai.provider"),
		BaseURL:         viper.GetString("ai.base_url"),
		Timeout:         viper.GetDuration("ai.timeout").String(),
		RateLimit:       viper.GetFloat64("ai.rate_limit"),
		Threshold:       viper.GetFloat64("ai.threshold"),
		Model:           viper.GetString("anthropic.model"),
		SMTPHost:        viper.GetString("smtp.host"),
		SMTPPort:        viper.GetInt("smtp.port"),
		SMTPFrom:        viper.GetString("smtp.from"),
		SMTPTimeout:     viper.GetDuration("smtp.timeout").String(),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by 'config show'.
var configKeys = []string{
	"db_path",
	"server.port",
	"server.shutdown_timeout",
	"ai.provider",
	"ai.base_url",
	"ai.api_key",
	"ai.timeout",
	"ai.rate_limit",
	"ai.burst",
	"ai.threshold",
	"anthropic.api_key",
	"anthropic.model",
	"smtp.host",
	"smtp.port",
	"smtp.username",
	"smtp.password",
	"smtp.from",
	"smtp.timeout",
}

// envVarFor maps a config key onto its AWAAZ_ environment variable.
func envVarFor(key string) string {
	return "AWAAZ_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// isSecretKey reports whether a key's value must be masked on display.
func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "password")
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, key := range configKeys {
		val := fmt.Sprint(viper.Get(key))
		if isSecretKey(key) && val != "" {
			val = "********"
		}
		source := detectSource(key, envVarFor(key), fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'awaaz config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
