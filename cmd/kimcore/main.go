// Command kimcore runs the KIM-1 memory/floppy emulator core: it loads
// persisted configuration, wires the memory store, bus emulator,
// controller and HTTP control surface together, and serves until
// interrupted.
//
// Grounded on oisee-z80-optimizer/cmd/z80opt/main.go's cobra layout (a
// single flag-bearing root command, RunE returning an error
// os.Exit(1)'s on) and on usbarmory-tamago/cmd/tamago/main.go's
// log.SetFlags(0) + os/signal.Notify shutdown idiom.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/kim1fw/memcard/bus"
	"github.com/kim1fw/memcard/cell"
	"github.com/kim1fw/memcard/config"
	"github.com/kim1fw/memcard/fdc"
	"github.com/kim1fw/memcard/httpapi"
	"github.com/kim1fw/memcard/imd"
	"github.com/kim1fw/memcard/netlink"
	"github.com/kim1fw/memcard/sdcard"
)

func main() {
	log.SetFlags(0)

	var (
		listenAddr string
		configPath string
		sdRoot     string
		netMode    string
		gvisorMAC  string
		gvisorIP   string
	)

	rootCmd := &cobra.Command{
		Use:   "kimcore",
		Short: "KIM-1 memory/floppy emulator core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(listenAddr, configPath, sdRoot, netMode, gvisorMAC, gvisorIP)
		},
	}
	rootCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8080", "HTTP control surface listen address")
	rootCmd.Flags().StringVar(&configPath, "config", "kimcore.gob", "Path to the persisted configuration blob")
	rootCmd.Flags().StringVar(&sdRoot, "sd-root", "./sd", "Host directory backing the SD card filesystem")
	rootCmd.Flags().StringVar(&netMode, "net-mode", "host", `Transport for the HTTP control surface: "host" (plain net/http.ListenAndServe) or "gvisor" (userspace netstack over --gvisor-mac/--gvisor-ip, for boards whose Wi-Fi driver feeds the link endpoint directly)`)
	rootCmd.Flags().StringVar(&gvisorMAC, "gvisor-mac", "1a:55:89:a2:69:41", "MAC address bound to the gvisor link endpoint (net-mode=gvisor only)")
	rootCmd.Flags().StringVar(&gvisorIP, "gvisor-ip", "10.0.0.1", "IPv4 address bound to the gvisor netstack (net-mode=gvisor only)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("kimcore: %v", err)
	}
}

func run(listenAddr, configPath, sdRoot, netMode, gvisorMAC, gvisorIP string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("kimcore: load config: %w", err)
	}

	store := cell.NewStore()
	store.CopyDefaultMap(&cfg.MemoryMap)
	if cfg.ControllerEnable {
		store.RangeOp(0, cell.NumCells, cell.OpEnable, 0)
	}

	fs, err := sdcard.NewLocalFS(sdRoot)
	if err != nil {
		return fmt.Errorf("kimcore: sd root: %w", err)
	}

	mgr := imd.NewManager(fs)
	for i, d := range cfg.Drives {
		if d.ImageName == "" {
			continue
		}
		if err := mgr.Mount(i, d.ImageName, d.ReadOnly); err != nil {
			log.Printf("kimcore: drive %d: mount %s: %v", i, d.ImageName, err)
		}
	}

	busEm := bus.NewEmulator(store)
	regs := fdc.Registers{
		HSR: cfg.SystemRAMBase,
		DAR: cfg.SystemRAMBase + 1,
		MSR: cfg.SystemRAMBase + 2,
		UDR: cfg.SystemRAMBase + 3,
	}
	ctl := fdc.NewController(store, busEm, mgr, regs, cfg.SystemRAMBase, cfg.UserRAMBase, log.New(os.Stderr, "fdc: ", 0))

	api := httpapi.NewServer(store, mgr, ctl, fs, cfg, configPath, log.New(os.Stderr, "httpapi: ", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("kimcore: controller context exited: %v", err)
		}
	}()

	srv := &http.Server{Addr: listenAddr, Handler: api}

	switch netMode {
	case "host":
		go func() {
			log.Printf("kimcore: listening on %s", listenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("kimcore: http server: %v", err)
			}
		}()
	case "gvisor":
		l, err := gvisorListener(listenAddr, gvisorMAC, gvisorIP)
		if err != nil {
			return fmt.Errorf("kimcore: gvisor net-mode: %w", err)
		}
		go func() {
			log.Printf("kimcore: listening on %s via gvisor netstack (%s)", l.Addr(), gvisorMAC)
			if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
				log.Printf("kimcore: http server: %v", err)
			}
		}()
	default:
		return fmt.Errorf("kimcore: unknown --net-mode %q (want host or gvisor)", netMode)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Print("kimcore: shutting down")
	cancel()
	return srv.Shutdown(context.Background())
}

// gvisorListener builds a netlink.Stack bound to mac/ip and returns a
// net.Listener over it, for --net-mode=gvisor: a board whose Wi-Fi driver
// feeds the stack's channel.Endpoint directly, rather than a real kernel
// socket, is this core's actual deployment target (spec §1 treats Wi-Fi
// association and the TCP/IP stack as an external collaborator consumed
// as a socket-like byte-stream API; netlink.Stack is that collaborator).
func gvisorListener(listenAddr, macStr, ipStr string) (net.Listener, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("--listen %q: %w", listenAddr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("--listen %q: bad port: %w", listenAddr, err)
	}

	mac, err := net.ParseMAC(macStr)
	if err != nil {
		return nil, fmt.Errorf("--gvisor-mac %q: %w", macStr, err)
	}
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("--gvisor-ip %q: not a valid IPv4 address", ipStr)
	}

	st, err := netlink.New(tcpip.LinkAddress(mac), tcpip.Address(ip.To4()))
	if err != nil {
		return nil, err
	}
	return st.Listen(uint16(port))
}
