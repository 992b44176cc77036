package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geodnsd/geodnsd/internal/config"
	"github.com/geodnsd/geodnsd/internal/geoplugin"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/stats"
	"github.com/geodnsd/geodnsd/internal/transport"
	"github.com/geodnsd/geodnsd/internal/ztree"
	"github.com/geodnsd/geodnsd/internal/zoneload"
)

var (
	udpAddr      = flag.String("udp", "", "UDP listen address")
	tcpAddr      = flag.String("tcp", "", "TCP listen address")
	udpListeners = flag.Int("listeners", 0, "Number of UDP listeners (SO_REUSEPORT)")
	zoneDir      = flag.String("zones", "", "Zone source directory")
	configFile   = flag.String("config", "/etc/geodnsd/geodnsd.yaml", "YAML config file")
	printStats   = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("geodnsd - authoritative GeoIP-aware DNS server")
	fmt.Println()

	cfg, err := config.LoadYAML(config.Default(), *configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *udpAddr != "" {
		cfg.UDPAddr = *udpAddr
	}
	if *tcpAddr != "" {
		cfg.TCPAddr = *tcpAddr
	}
	if *udpListeners != 0 {
		cfg.UDPListeners = *udpListeners
	}
	if *zoneDir != "" {
		cfg.ZoneDir = *zoneDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  UDP Address:   %s\n", cfg.UDPAddr)
	fmt.Printf("  TCP Address:   %s\n", cfg.TCPAddr)
	fmt.Printf("  Listeners:     %d (SO_REUSEPORT)\n", cfg.UDPListeners)
	fmt.Printf("  CPU Cores:     %d\n", runtime.NumCPU())
	fmt.Printf("  Zone Dir:      %s\n", cfg.ZoneDir)
	fmt.Println()

	mgr := ztree.NewManager()
	reloader := zoneload.NewReloader(cfg.ZoneDir, 3600, mgr, cfg.ReloadCheckInterval)
	if err := reloader.LoadOnce(); err != nil {
		log.Printf("initial zone load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go reloader.Run(ctx)

	var bootNonce [16]byte
	if _, err := rand.Read(bootNonce[:]); err != nil {
		log.Fatalf("seeding boot nonce: %v", err)
	}

	resolver := geoplugin.New()
	srv := transport.New(transport.Config{
		UDPAddr:      cfg.UDPAddr,
		TCPAddr:      cfg.TCPAddr,
		UDPListeners: cfg.UDPListeners,
		ECSEnabled:   cfg.ECSEnabled,
		Resolvers:    plugin.Resolvers{Addr: resolver, CNAME: resolver},
		BootNonce:    bootNonce,
		Limits: reqctx.Limits{
			MaxResponse:       cfg.MaxResponse,
			MaxCNAMEDepth:     cfg.MaxCNAMEDepth,
			MaxAddtlRRSets:    cfg.MaxAddtlRRSets,
			CompTargetsMax:    cfg.CompTargetsMax,
			AdvertisedUDP:     cfg.AdvertisedUDPSize,
			IncludeOptionalNS: cfg.IncludeOptionalNS,
		},
	}, mgr)

	if err := srv.Start(); err != nil {
		log.Fatalf("starting server: %v", err)
	}
	fmt.Println("server started")
	fmt.Println()

	registry := prometheus.NewRegistry()
	registry.MustRegister(stats.NewCollector(srv.Stats()))

	if *printStats {
		go logStats(ctx, srv, cfg.StatsLogInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()

	cancel()
	srv.Stop()
}

func logStats(ctx context.Context, srv *transport.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := stats.Sum(srv.Stats())
			log.Printf("queries: noerror=%d nxdomain=%d refused=%d notimp=%d formerr=%d badvers=%d dropped=%d udp_tc=%d edns=%d ecs=%d",
				s.NoError, s.NXDomain, s.Refused, s.NotImp, s.FormErr, s.BadVers, s.Dropped, s.UDPTC, s.EDNS, s.EDNSClientSub)
		}
	}
}
