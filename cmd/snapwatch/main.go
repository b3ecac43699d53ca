package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tauraamui/snapwatch/internal/config"
	"github.com/tauraamui/snapwatch/pkg/keyboard"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/snapwatch"
)

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	keys := keyboard.NewSource(os.Stdin)
	server, err := snapwatch.NewServer(config.DefaultResolver(), nil, snapwatch.WithKeySource(keys))
	if err != nil {
		log.Fatal(err.Error())
	}

	cfg := server.Config()
	if len(cfg.LogLevel) > 0 {
		log.SetLevel(cfg.LogLevel)
	}
	if cfg.Debug {
		log.SetLevel("debug")
	}

	log.Info("Starting snapwatch...")

	if err := server.SetupProcesses(); err != nil {
		log.Fatal(err.Error())
	}

	// headless windows take their quit keys from the terminal
	if cfg.VideoBackend == "image" {
		if err := keys.Start(); err != nil {
			log.Fatal("unable to read key presses: %v", err)
		}
		defer keys.Close()
	}

	runDone := make(chan interface{})
	go runServer(server, runDone)

	select {
	case killSignal := <-interrupt:
		fmt.Print("\r")
		log.Error("Received signal: %s", killSignal)
		log.Info("Shutting down server...")
		<-server.Shutdown()
		<-runDone
	case <-runDone:
	}

	log.Info("Shutdown successful... BYE! 👋")
}

func runServer(server *snapwatch.Server, done chan interface{}) {
	defer close(done)
	for _, err := range server.RunProcesses() {
		log.Error(err.Error())
	}
}

func init() {
	log.SetLevel(os.Getenv("SNAPWATCH_LOGGING_LEVEL"))
}
