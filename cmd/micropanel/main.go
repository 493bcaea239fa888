package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"micropanel/internal/logger"
	"micropanel/pkg/config"
	"micropanel/pkg/figure"
)

func main() {
	configPath := flag.String("config", "figure.yaml", "YAML figure configuration")
	output := flag.String("output", "", "Output image path (overrides figure.output)")
	envFile := flag.String("env", ".env", "Optional dotenv file with MICROPANEL_* overrides")
	initConfig := flag.Bool("init", false, "Write a default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.WriteDefault(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *output != "" {
		cfg.Figure.Output = *output
	}

	logs := logger.NewConsole()

	composer, err := figure.NewComposer(cfg, nil, logs)
	if err != nil {
		logs.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := composer.Process(ctx); err != nil {
		logs.Error("Figure generation failed: %v", err)
		stop()
		os.Exit(1)
	}

	summary := composer.Summary()
	fmt.Printf("\nFigure: %d conditions x %d rows in %.2f seconds\n",
		len(cfg.Columns), len(cfg.Rows), summary.Duration.Seconds())
	fmt.Printf("%-12s %-12s %10s %10s\n", "Condition", "Channel", "Size", "Mean")
	for _, p := range summary.Panels {
		size := fmt.Sprintf("%dx%d", p.Width, p.Height)
		note := ""
		if p.Placeholder {
			note = "  (placeholder: " + p.Path + ")"
		}
		fmt.Printf("%-12s %-12s %10s %10.3f%s\n", p.Condition, p.Row, size, p.Mean, note)
	}
	if summary.ScaleBar != nil {
		fmt.Printf("Scale bar: %g um = %.1f px\n", summary.ScaleBar.LengthMicrons, summary.ScaleBar.Width)
	}
	if n := len(summary.Placeholders); n > 0 {
		fmt.Printf("Warning: %d input(s) missing, rendered as blank panels\n", n)
	}
}
