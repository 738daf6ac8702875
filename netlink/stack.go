// Package netlink builds the socket-like byte-stream transport the HTTP
// control surface runs over, without any Wi-Fi association or real NIC
// involved: it builds a gvisor userspace netstack bound to an in-memory
// link endpoint and hands back a plain net.Listener, so httpapi can run
// an ordinary net/http.Server without any OS networking underneath.
//
// Grounded on usb_ethernet.go's configureNetworkStack (stack.New with
// ipv4+arp+tcp+udp+icmp, a channel.Endpoint link layer, AddAddress +
// SetRouteTable) and web_server.go's gonet.NewListener/http.Server.Serve
// wiring, minus the USB gadget descriptors — this core never has a real
// USB/Wi-Fi peripheral to drive, only the stack above it.
package netlink

import (
	"fmt"
	"net"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
)

// DefaultNIC is the single NIC ID this stack ever creates; the core never
// juggles more than one network interface.
const DefaultNIC tcpip.NICID = 1

// queueLen is the channel endpoint's packet queue depth (usb_ethernet.go
// uses 256 against a USB link; there's no hardware queue here, so the same
// figure is kept as a reasonable software buffer).
const queueLen = 256

// MTU is the link's maximum transmission unit.
const MTU = 1500

// Stack wraps a gvisor userspace netstack plus its single channel-backed
// NIC, so tests can inject frames directly without a real link.
type Stack struct {
	Net  *stack.Stack
	Link *channel.Endpoint
	Addr tcpip.Address
}

// New builds a Stack bound to a single IPv4 address over a channel link
// endpoint, with a default route out that NIC — the same shape
// configureNetworkStack builds, minus USB/Ethernet descriptors this core
// has no use for.
func New(mac tcpip.LinkAddress, addr tcpip.Address) (*Stack, error) {
	s := stack.New(stack.Options{
		NetworkProtocols: []stack.NetworkProtocol{
			ipv4.NewProtocol(),
			arp.NewProtocol(),
		},
		TransportProtocols: []stack.TransportProtocol{
			tcp.NewProtocol(),
			udp.NewProtocol(),
			icmp.NewProtocol4(),
		},
	})

	link := channel.New(queueLen, MTU, mac)

	if err := s.CreateNIC(DefaultNIC, link); err != nil {
		return nil, fmt.Errorf("netlink: create NIC: %s", err)
	}
	if err := s.AddAddress(DefaultNIC, arp.ProtocolNumber, arp.ProtocolAddress); err != nil {
		return nil, fmt.Errorf("netlink: add ARP address: %s", err)
	}
	if err := s.AddAddress(DefaultNIC, ipv4.ProtocolNumber, addr); err != nil {
		return nil, fmt.Errorf("netlink: add IPv4 address: %s", err)
	}

	subnet, err := tcpip.NewSubnet("\x00\x00\x00\x00", "\x00\x00\x00\x00")
	if err != nil {
		return nil, fmt.Errorf("netlink: subnet: %s", err)
	}
	s.SetRouteTable([]tcpip.Route{{Destination: subnet, NIC: DefaultNIC}})

	return &Stack{Net: s, Link: link, Addr: addr}, nil
}

// Listen returns a net.Listener bound to port on this stack's address, the
// same gonet.NewListener call startWebServer makes.
func (st *Stack) Listen(port uint16) (net.Listener, error) {
	full := tcpip.FullAddress{Addr: st.Addr, Port: port, NIC: DefaultNIC}
	l, err := gonet.NewListener(st.Net, full, ipv4.ProtocolNumber)
	if err != nil {
		return nil, fmt.Errorf("netlink: listen :%d: %s", port, err)
	}
	return l, nil
}
