package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ternio/rtmpcore/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a toml config file")
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rtmpcored: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := server.NewService(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rtmpcored: %v\n", err)
		os.Exit(1)
	}
}
