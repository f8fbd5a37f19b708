package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type generatedConfig struct {
	OpenAIModel    string   `yaml:"openai_model,omitempty"`
	CoinGeckoURL   string   `yaml:"coingecko_url,omitempty"`
	RedisAddr      string   `yaml:"redis_addr,omitempty"`
	PriceSources   []string `yaml:"price_sources"`
	SessionTimeout string   `yaml:"session_timeout"`
	JournalDir     string   `yaml:"journal_dir,omitempty"`
	Dashboard      struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr,omitempty"`
	} `yaml:"dashboard"`
}

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml. Secrets are not collected here, they stay in the
// environment.
func RunTUI() error {
	var (
		model            string
		redisAddr        string
		priceSources     []string
		sessionTimeout   string
		journalDir       string
		dashboardEnabled bool
		dashboardAddr    string
		confirm          bool
	)

	// defaults
	model = "gpt-4"
	redisAddr = "localhost:6379"
	sessionTimeout = "2m"
	journalDir = "./wal/analyses"
	dashboardAddr = ":8080"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("CRYPTOSAGE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your market assistant set up.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PRICE SOURCES"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select price sources (priority order follows this list)").
				Options(
					huh.NewOption("CoinGecko", "coingecko").Selected(true),
					huh.NewOption("Binance", "binance").Selected(true),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&priceSources).
				Validate(func(picked []string) error {
					if len(picked) == 0 {
						return fmt.Errorf("pick at least one source")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOSAGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MODEL AND STORES"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI Model").
				Value(&model),
			huh.NewInput().
				Title("Redis Address").
				Description("host:port").
				Value(&redisAddr).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("address cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Journal Directory").
				Description("Where analysis events are persisted").
				Value(&journalDir),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOSAGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SESSIONS AND DASHBOARD"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session Timeout").
				Description("How long to wait for a follow-up reply (e.g. 90s, 2m)").
				Value(&sessionTimeout).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Enable Web Dashboard?").
				Value(&dashboardEnabled),
			huh.NewInput().
				Title("Dashboard Address").
				Value(&dashboardAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOSAGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Model: %s\nRedis: %s\nSources: %v\nSession timeout: %s\nDashboard: %v\n",
		model, redisAddr, priceSources, sessionTimeout, dashboardEnabled,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	gen := generatedConfig{
		OpenAIModel:    model,
		RedisAddr:      redisAddr,
		PriceSources:   priceSources,
		SessionTimeout: sessionTimeout,
		JournalDir:     journalDir,
	}
	gen.Dashboard.Enabled = dashboardEnabled
	gen.Dashboard.Addr = dashboardAddr

	data, err := yaml.Marshal(gen)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}
