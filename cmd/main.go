package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"quizclash-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("quizclash exited")
		os.Exit(1)
	}
}
