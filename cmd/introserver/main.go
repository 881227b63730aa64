// Command introserver runs the bootstrap introduction service that
// hands joining peers a virtual address, a small sample of existing
// peers, and the session key used to decrypt its own reply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"

	"github.com/parekh/kadnet/introserver"
	"github.com/parekh/kadnet/logging"
)

var (
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "listen address for the introduction service",
		Value: introserver.DefaultAddr,
	}
	cidrFlag = cli.StringFlag{
		Name:  "cidr",
		Usage: "virtual address block to allocate from",
		Value: "10.0.0.0/8",
	}
	devFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "use human-readable development logging instead of JSON",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "introserver"
	app.Usage = "bootstrap introduction service for the kadnet overlay"
	app.Flags = []cli.Flag{addrFlag, cidrFlag, devFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := newLogger(c)
	defer log.Sync()

	srv, err := introserver.NewServer(c.String(addrFlag.Name), c.String(cidrFlag.Name), log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.ListenAndServe(ctx)
}

func newLogger(c *cli.Context) *zap.SugaredLogger {
	if c.Bool(devFlag.Name) {
		return logging.NewDevelopment("introserver")
	}
	return logging.New("introserver")
}
