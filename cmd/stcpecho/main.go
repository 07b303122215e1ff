// Command stcpecho is a minimal demo wiring an stcp.Engine to a real UDP
// socket: it either listens passively or actively dials a peer, and in both
// roles sends lines read from stdin to the peer and prints whatever it
// receives to stdout. The listening side does not echo received bytes back.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/macaddino/stcp/mysock"
	"github.com/macaddino/stcp/netlo"
	"github.com/macaddino/stcp/stcp"
	"github.com/macaddino/stcp/stcpmetrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listenAddr string
		remoteAddr string
		active     bool
		fixedISN   bool
		verbose    bool
	)
	flag.StringVar(&listenAddr, "listen", ":7000", "local UDP address to bind")
	flag.StringVar(&remoteAddr, "remote", "", "remote UDP address to dial (implies -active)")
	flag.BoolVar(&active, "active", false, "open the connection actively instead of waiting for a peer")
	flag.BoolVar(&fixedISN, "fixed-isn", false, "force the initial sequence number to 1, for reproducible traces")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Parse()
	if remoteAddr != "" {
		active = true
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	udp, err := netlo.DialUDP(listenAddr, remoteAddr)
	if err != nil {
		return err
	}
	defer udp.Close()

	facade := mysock.NewChanFacade(udp)
	id := xid.New().String()
	engine := stcp.New(id, facade)
	engine.SetLogger(logger)
	engine.SetFixedISN(fixedISN)

	collector := stcpmetrics.New(id,
		func() float64 { return float64(engine.RetransmitQueueLen()) },
		func() float64 { return float64(engine.State()) },
	)
	engine.SetMetrics(collector)

	role := stcp.RoleListen
	if active {
		role = stcp.RoleActive
	}
	if err := engine.Init(role); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pumpNetwork(udp, facade)
	go pumpStdin(facade)
	go pumpStdout(facade)

	logger.Info("stcpecho starting", slog.String("conn", id), slog.Bool("active", active))
	return engine.Run(ctx)
}

// pumpNetwork feeds inbound UDP datagrams to the facade's network queue.
func pumpNetwork(udp *netlo.UDPConn, facade *mysock.ChanFacade) {
	buf := make([]byte, stcp.MaxSegmentLen)
	for {
		n, err := udp.Recv(buf)
		if err != nil {
			return
		}
		facade.PushSegment(buf[:n])
	}
}

// pumpStdin feeds lines from stdin to the facade's outgoing application queue.
func pumpStdin(facade *mysock.ChanFacade) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		facade.Write(line)
	}
	facade.RequestClose()
}

// pumpStdout drains the facade's inbound application bytes to stdout.
func pumpStdout(facade *mysock.ChanFacade) {
	buf := make([]byte, 4096)
	for {
		n, err := facade.Read(buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err != nil {
			return
		}
		if n == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
}
