// Command kadnet-demo brings up a small local overlay — one
// introduction server and ten DHT nodes — joins every node through the
// introduction server, registers a couple of domains, and looks them
// up from a node that never stored them, mirroring the scenario
// original_source/p2p_node.py's main() runs end to end.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/parekh/kadnet/dhtnode"
	"github.com/parekh/kadnet/introserver"
	"github.com/parekh/kadnet/logging"
	"github.com/parekh/kadnet/peer"
)

const nodeCount = 10
const introAddr = "127.0.0.1:8888"

func main() {
	log := logging.NewDevelopment("demo")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	intro, err := introserver.NewServer(introAddr, "10.0.0.0/8", log)
	if err != nil {
		log.Fatalw("new introduction server", "err", err)
	}
	go func() {
		if err := intro.ListenAndServe(ctx); err != nil {
			log.Errorw("introduction server stopped", "err", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	nodes := make([]*dhtnode.Node, nodeCount)
	for i := 0; i < nodeCount; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", 9000+i)
		n, err := dhtnode.New(addr, log)
		if err != nil {
			log.Fatalw("new node", "addr", addr, "err", err)
		}
		go func() {
			if err := n.Start(ctx); err != nil {
				log.Errorw("node stopped", "addr", addr, "err", err)
			}
		}()
		nodes[i] = n
	}
	time.Sleep(100 * time.Millisecond)

	fmt.Println("Joining the network...")
	for i, n := range nodes {
		port := 9000 + i
		result, err := introserver.Join(introAddr, "127.0.0.1", port)
		if err != nil {
			log.Errorw("join failed", "addr", n.Addr, "err", err)
			continue
		}
		n.Bootstrap(ctx, result.Seeds)
	}
	fmt.Println("All nodes have joined the network")

	time.Sleep(2 * time.Second)

	fmt.Println("Registering domains...")
	front0 := peer.New(nodes[0])
	ok := front0.RegisterDomain(ctx, "example.com", "10.0.0.1")
	fmt.Printf("Registration of example.com %s\n", outcome(ok))

	front1 := peer.New(nodes[1])
	ok = front1.RegisterDomain(ctx, "test.com", "10.0.0.2")
	fmt.Printf("Registration of test.com %s\n", outcome(ok))

	time.Sleep(500 * time.Millisecond)

	fmt.Println("Looking up domains...")
	resolver := peer.New(nodes[5])
	for _, domain := range []string{"example.com", "test.com", "nonexistent.com"} {
		value := resolver.LookupDomain(ctx, domain)
		if value == nil {
			fmt.Printf("Domain %s resolves to: <not found>\n", domain)
		} else {
			fmt.Printf("Domain %s resolves to: %s\n", domain, *value)
		}
	}
}

func outcome(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}
