package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Advertiser answers mDNS queries for the engine's local name
type Advertiser struct {
	conn *mdns.Conn
}

// Advertise starts answering for localName on both IPv4 and IPv6.
// If IPv6 multicast is unavailable it falls back to IPv4 only.
func Advertise(localName string) (*Advertiser, error) {
	if localName == "" {
		return nil, fmt.Errorf("mdns: empty local name")
	}

	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		return nil, fmt.Errorf("resolve udp4: %w", err)
	}
	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		return nil, fmt.Errorf("listen udp4: %w", err)
	}

	var pc6 *ipv6.PacketConn
	if addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6); err == nil {
		if l6, err := net.ListenUDP("udp6", addr6); err == nil {
			pc6 = ipv6.NewPacketConn(l6)
		} else {
			log.Printf("MDNS: IPv6 unavailable, advertising on IPv4 only: %v", err)
		}
	}

	conn, err := mdns.Server(ipv4.NewPacketConn(l4), pc6, &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		_ = l4.Close()
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	log.Printf("MDNS: Advertising %s", localName)
	return &Advertiser{conn: conn}, nil
}

// Close stops answering queries
func (a *Advertiser) Close() error {
	if a == nil || a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
