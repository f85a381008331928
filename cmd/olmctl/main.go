package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"olmcore/cmd/olmctl/commands"
)

var logger = logrus.New()

func main() {
	if err := commands.Execute(logger); err != nil {
		logger.WithError(err).Error("olmctl failed")
		os.Exit(1)
	}
}
