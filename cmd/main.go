package main

import (
	"fmt"
	"os"

	"cfdpaper/cmd/hashtoken"
	"cfdpaper/cmd/marktomarket"
	"cfdpaper/cmd/quotefeed"
	"cfdpaper/cmd/submitter"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "cfdpaper"
	app.Usage = "CFD paper trading jobs and tools"
	app.Version = Version

	app.Commands = []cli.Command{
		markToMarketCMD,
		quoteFeedCMD,
		submitCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var onceFlag = cli.BoolFlag{
	Name:  "once",
	Usage: "run a single pass and exit",
}

var (
	markToMarketCMD = cli.Command{
		Name:        "marktomarket",
		Usage:       "run mark-to-market",
		Action:      markToMarketAction,
		Flags:       []cli.Flag{onceFlag},
		Description: `Re-price open positions and suspend accounts under the margin-call threshold`,
	}
	quoteFeedCMD = cli.Command{
		Name:        "quotefeed",
		Usage:       "run the quote feed",
		Action:      quoteFeedAction,
		Flags:       []cli.Flag{onceFlag},
		Description: `Poll the configured quote provider into the market data cache`,
	}
	submitCMD = cli.Command{
		Name:      "submit",
		Usage:     "submit a file of orders through the retrying client queue",
		Action:    submitAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "file, f",
				Usage: "JSON array of orders",
			},
		},
		Description: `Submit orders to the API with bounded retry`,
	}
	hashTokenCMD = cli.Command{
		Name:   "hashtoken",
		Usage:  "print the bcrypt hash of an internal token",
		Action: hashTokenAction,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "token, t",
				Usage: "token to hash, read from stdin when omitted",
			},
		},
		Description: `Generate the INTERNAL_TOKEN_HASH value for the internal endpoints`,
	}
)

func markToMarketAction(c *cli.Context) error {
	logrus.Info("Starting mark-to-market CMD")

	job := &marktomarket.MarkToMarket{
		Log:  logrus.WithField("cmd", "marktomarket"),
		Once: c.Bool("once"),
	}
	if err := job.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func quoteFeedAction(c *cli.Context) error {
	logrus.Info("Starting quote feed CMD")

	feed := &quotefeed.QuoteFeed{
		Log:  logrus.WithField("cmd", "quotefeed"),
		Once: c.Bool("once"),
	}
	if err := feed.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func submitAction(c *cli.Context) error {
	file := c.String("file")
	if file == "" {
		return cli.NewExitError("--file is required", 1)
	}
	logrus.WithField("file", file).Info("Starting submit CMD")

	s := &submitter.Submitter{
		Log:  logrus.WithField("cmd", "submit"),
		File: file,
	}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Submit cmd")
		return err
	}
	return nil
}

func hashTokenAction(c *cli.Context) error {
	h := &hashtoken.HashToken{
		Log:   logrus.WithField("cmd", "hashtoken"),
		Token: c.String("token"),
		In:    os.Stdin,
		Out:   os.Stdout,
	}
	return h.Start()
}
