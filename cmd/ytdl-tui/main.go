package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/marcopiovanello/ytdl-eta/server/logging"
	"github.com/marcopiovanello/ytdl-eta/server/tui"
	"github.com/mattn/go-isatty"
)

func main() {
	var (
		configFile string
		url        string
		quality    string
		showPlots  bool
	)

	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.StringVar(&url, "url", "", "Video URL")
	flag.StringVar(&quality, "quality", "", `Variant to download, e.g. "720p mp4" (default: best)`)
	flag.BoolVar(&showPlots, "plots", false, "Record samples and report the prediction error")
	flag.Parse()

	if url == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(configFile, url, quality, showPlots); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configFile, url, quality string, showPlots bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the terminal belongs to the progress view, logs only go to file
	logConf := cfg.Logging
	logConf.EnableFileLogging = true
	closeLogs, err := logging.Setup(ctx, logConf, nil)
	if err != nil {
		return err
	}
	defer closeLogs()

	return tui.RunWithConfig(ctx, cfg, tui.Options{
		URL:         url,
		Quality:     quality,
		ShowPlots:   showPlots || cfg.Download.ShowPlots,
		Interactive: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		Output:      os.Stdout,
	})
}
