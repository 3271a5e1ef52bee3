package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()
	build := BuildTime

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("JOBSCOUT")
	b.PrintCenteredText("Multi-Platform Job Listing Crawler")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Storage", config.Storage.Backend, 15)
	b.PrintKeyValue("LLM Provider", string(config.LLM.DefaultProvider), 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("storage_backend", config.Storage.Backend).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Int("max_concurrent_tasks", config.Scheduler.MaxConcurrent).
		Int("registry_fan_out", config.Engine.MaxConcurrentPlatforms).
		Msg("jobscout starting")

	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the enabled platforms and storage/cost configuration
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("Enabled platforms:\n")
	if len(config.Platforms.Enabled) == 0 {
		fmt.Printf("   - none configured (add entries under [platforms] in jobscout.toml)\n")
	}
	for _, name := range config.Platforms.Enabled {
		fmt.Printf("   - %s\n", name)
	}

	fmt.Printf("Storage backend: %s\n", config.Storage.Backend)
	fmt.Printf("Cost tracker caps: hourly=$%.2f daily=$%.2f monthly=$%.2f\n",
		config.Cost.HourlyLimitUSD, config.Cost.DailyLimitUSD, config.Cost.MonthlyLimitUSD)

	logger.Info().
		Strs("enabled_platforms", config.Platforms.Enabled).
		Str("storage_backend", config.Storage.Backend).
		Float64("hourly_limit_usd", config.Cost.HourlyLimitUSD).
		Float64("daily_limit_usd", config.Cost.DailyLimitUSD).
		Float64("monthly_limit_usd", config.Cost.MonthlyLimitUSD).
		Msg("capabilities")
}

// PrintShutdownBanner displays the application shutdown banner
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	// Visual banner to stdout
	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("JOBSCOUT")
	b.PrintBottomLine()
	fmt.Println()

	// Log shutdown through Arbor
	logger.Info().Msg("jobscout shutting down")
}

// PrintColorizedMessage prints a message with specified color to stdout; it
// does not log (the Print* helpers below log separately)
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("OK: %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("ERROR: %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("WARN: %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("INFO: %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}
