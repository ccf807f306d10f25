// Package setup contains the terminal wizard that generates a config
// file for the dashboard.
package setup

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/botwatch/config"
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

// RunTUI launches the terminal configuration wizard and writes the
// chosen settings to config.gen.yaml.
func RunTUI() error {
	var (
		endpoint        string
		listenAddr      string
		pollIntervalStr string
		accountsStr     string
		refPlatform     string
		historyDir      string
		tlsDomainsStr   string
		confirm         bool
	)

	// defaults
	endpoint = "http://127.0.0.1:9000"
	listenAddr = ":8080"
	pollIntervalStr = "2s"
	accountsStr = "binance-only, chainlink-only, dual-confirmation"
	historyDir = "historydata"

	// step 1: backend
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("BOTWATCH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the dashboard at your bot and pick how it watches.\n"))

	fmt.Println(stepStyle.Render("STEP 1: BACKEND"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot Backend URL").
				Description("Base URL of the bot API (e.g. http://127.0.0.1:9000)").
				Value(&endpoint).
				Validate(validateEndpoint),
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 2s, 5s)").
				Value(&pollIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: accounts
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: ACCOUNTS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account Display Order").
				Description("Comma-separated account ids; accounts the bot reports but you omit sort last").
				Value(&accountsStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: reference prices
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: PRICE CROSS-CHECK"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reference Price Platform").
				Description("Independent exchange to compare the bot's feeds against").
				Options(
					huh.NewOption("None", ""),
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&refPlatform),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 4: serving
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: SERVING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("Address the dashboard binds to (e.g. :8080)").
				Value(&listenAddr),
			huh.NewInput().
				Title("History Directory").
				Description("Equity history WAL dir; empty disables persistence").
				Value(&historyDir),
			huh.NewInput().
				Title("TLS Domains").
				Description("Comma-separated domains for automatic certificates; empty serves plain HTTP").
				Value(&tlsDomainsStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	refShown := refPlatform
	if refShown == "" {
		refShown = "none"
	}
	summary := fmt.Sprintf(
		"Backend: %s\nPoll: %s\nAccounts: %s\nRef prices: %s\nListen: %s\nHistory: %s\n",
		endpoint, pollIntervalStr, accountsStr, refShown, listenAddr, historyDir,
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

	pollInterval, _ := time.ParseDuration(pollIntervalStr)

	cfg := config.Config{
		Endpoint:     endpoint,
		ListenAddr:   listenAddr,
		PollInterval: pollInterval,
		Accounts:     splitList(accountsStr),
		History:      config.HistoryConfig{Dir: historyDir},
		RefPrice:     config.RefPriceConfig{Platform: refPlatform},
		TLS:          config.TLSConfig{Domains: splitList(tlsDomainsStr)},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateEndpoint(s string) error {
	if s == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be a full URL (e.g. http://127.0.0.1:9000)")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
