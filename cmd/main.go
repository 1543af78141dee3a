package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/manifestfs/config"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/brettbedarf/manifestfs/server"
	flag "github.com/spf13/pflag"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		umount     bool
		allowOther bool
	)
	flag.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace).")
	flag.BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount (needs user_allow_other)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <manifest> <mountpoint>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logger; a config file can only raise or lower it after loading
	util.InitializeLogger(util.VerbosityLevel(verbose))
	logger := util.GetLogger("main")

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	manifestPath, mnt := flag.Arg(0), flag.Arg(1)

	// Config file first, then explicit flags on top
	override := &config.ConfigOverride{}
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to read config file")
		}
		override = fileOverride
	}
	if flag.CommandLine.Changed("verbose") || override.LogLvl == nil {
		override.LogLvl = &verbose
	}
	if flag.CommandLine.Changed("allow-other") {
		override.AllowOther = &allowOther
	}
	cfg := config.NewConfig(override)
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	util.InitializeLogger(cfg.LogLvl)
	logger = util.GetLogger("main")

	logger.Info().
		Int("verbose", verbose).
		Str("manifest", manifestPath).
		Str("mnt", mnt).
		Msg("manifestfs initializing")

	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	// Build the whole tree before mounting so a bad manifest never mounts
	fs, err := server.Load(cfg, manifestPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load manifest")
	}

	// Serve
	if err := fs.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		fs.Wait()
		close(unmounted)
	}()

	// Wait for termination signal or an external unmount
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
		if err := fs.Unmount(); err != nil {
			logger.Error().Err(err).Msg("Failed to unmount filesystem")
			os.Exit(1)
		}
		logger.Info().Msg("Filesystem unmounted successfully")
	case <-unmounted:
		logger.Info().Msg("Filesystem unmounted externally")
	}
}
