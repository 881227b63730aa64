// Command dhtnode runs a single DHT overlay participant: it joins
// through an introduction server (or starts a fresh network if none is
// given), serves RPCs, and exposes domain register/lookup over a
// minimal CLI for manual testing.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"

	"github.com/parekh/kadnet/dhtnode"
	"github.com/parekh/kadnet/introserver"
	"github.com/parekh/kadnet/logging"
	"github.com/parekh/kadnet/peer"
)

var (
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "own ip:port to listen on and advertise to peers",
		Value: "127.0.0.1:9000",
	}
	introFlag = cli.StringFlag{
		Name:  "introserver",
		Usage: "address of an introduction server to join through (optional)",
	}
	registerFlag = cli.StringFlag{
		Name:  "register",
		Usage: "name=value pair to register once the node is up",
	}
	lookupFlag = cli.StringFlag{
		Name:  "lookup",
		Usage: "domain name to resolve once the node is up",
	}
	devFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "use human-readable development logging instead of JSON",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "dhtnode"
	app.Usage = "a single kadnet DHT overlay participant"
	app.Flags = []cli.Flag{listenFlag, introFlag, registerFlag, lookupFlag, devFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.New("dhtnode")
	if c.Bool(devFlag.Name) {
		log = logging.NewDevelopment("dhtnode")
	}
	defer log.Sync()

	addr := c.String(listenFlag.Name)
	node, err := dhtnode.New(addr, log)
	if err != nil {
		return fmt.Errorf("dhtnode: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := node.Start(ctx); err != nil {
			log.Errorw("server stopped", "err", err)
		}
	}()

	if introAddr := c.String(introFlag.Name); introAddr != "" {
		if err := joinThroughIntroServer(ctx, node, introAddr, addr, log); err != nil {
			return err
		}
	}

	front := peer.New(node)

	if kv := c.String(registerFlag.Name); kv != "" {
		name, value, err := splitKeyValue(kv)
		if err != nil {
			return err
		}
		ok := front.RegisterDomain(ctx, name, value)
		log.Infow("register", "name", name, "value", value, "ok", ok)
	}

	if name := c.String(lookupFlag.Name); name != "" {
		value := front.LookupDomain(ctx, name)
		if value == nil {
			log.Infow("lookup", "name", name, "found", false)
		} else {
			log.Infow("lookup", "name", name, "found", true, "value", *value)
		}
	}

	<-ctx.Done()
	return nil
}

func joinThroughIntroServer(ctx context.Context, node *dhtnode.Node, introAddr, ownAddr string, log *zap.SugaredLogger) error {
	host, portStr, err := net.SplitHostPort(ownAddr)
	if err != nil {
		return fmt.Errorf("dhtnode: invalid -listen address %q: %w", ownAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("dhtnode: invalid -listen port %q: %w", portStr, err)
	}

	result, err := introserver.Join(introAddr, host, port)
	if err != nil {
		return fmt.Errorf("dhtnode: join %s: %w", introAddr, err)
	}
	log.Infow("joined network", "virtual_ip", result.VirtualIP, "seeds", len(result.Seeds))

	node.Bootstrap(ctx, result.Seeds)
	return nil
}

func splitKeyValue(kv string) (name, value string, err error) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("dhtnode: -register expects name=value, got %q", kv)
}
