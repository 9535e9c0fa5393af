package main

import (
	"fmt"
	"os"

	"fxhedge/cmd/keys"
	"fxhedge/cmd/monitor"
	"fxhedge/cmd/publisher"
	"fxhedge/src/utils"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	utils.SetupLogger()

	app := cli.NewApp()
	app.Name = "fxhedge"
	app.Usage = "FX hedging position monitor"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		watchCMD,
		publishCMD,
		updateOracleCMD,
		hashKeyCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the monitor with the HTTP API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Poll the watched position and serve its view, actions and the oracle trigger over HTTP`,
	}
	watchCMD = cli.Command{
		Name:        "watch",
		Usage:       "run the monitor and log position updates",
		Action:      watchAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Poll the watched position and log every view change`,
	}
	publishCMD = cli.Command{
		Name:        "publish",
		Usage:       "push oracle prices periodically",
		Action:      publishAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Push external FX rates to the price oracle every ORACLE_PUSH_INTERVAL`,
	}
	updateOracleCMD = cli.Command{
		Name:      "update-oracle",
		Usage:     "push oracle prices once",
		Action:    updateOracleAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "updated-by", Value: "cli", Usage: "label recorded with the update"},
		},
		Description: `Push external FX rates to the price oracle once and print the result`,
	}
	hashKeyCMD = cli.Command{
		Name:        "hash-key",
		Usage:       "hash an oracle trigger API key",
		Action:      hashKeyAction,
		ArgsUsage:   "[api key]",
		Flags:       []cli.Flag{},
		Description: `Print the ORACLE_API_KEY_HASH value for an API key`,
	}
)

func serveAction(_ *cli.Context) error {
	logrus.WithField("cmd", "serve").Info("Starting monitor CMD")

	m := &monitor.Monitor{Serve: true}
	if err := m.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func watchAction(_ *cli.Context) error {
	logrus.WithField("cmd", "watch").Info("Starting monitor CMD")

	m := &monitor.Monitor{}
	if err := m.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func publishAction(_ *cli.Context) error {
	logrus.WithField("cmd", "publish").Info("Starting oracle publisher CMD")

	p := &publisher.Publisher{}
	if err := p.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func updateOracleAction(c *cli.Context) error {
	p := &publisher.Publisher{Once: true, UpdatedBy: c.String("updated-by")}
	if err := p.Start(); err != nil {
		logrus.WithError(err).Error("Oracle update failed")
		return err
	}
	return nil
}

func hashKeyAction(c *cli.Context) error {
	return keys.Hash(os.Stdout, c.Args().First())
}
