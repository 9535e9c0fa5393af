package main

import (
	"fmt"
	"os"
	"time"

	"fxhedge/cmd/monitor"
	"fxhedge/src/utils"

	logger "github.com/sirupsen/logrus"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	utils.SetupLogger()
	defer handlePanic()

	m := &monitor.Monitor{Serve: true}
	if err := m.Start(); err != nil {
		logger.WithError(err).Fatal("Monitor failed")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
