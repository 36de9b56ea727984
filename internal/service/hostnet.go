package service

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// HostAddr is one IPv4 address bound on the recorder host.
type HostAddr struct {
	Iface  string `json:"iface"`  // "eth1"
	Addr   string `json:"addr"`   // "192.168.1.2"
	Prefix string `json:"prefix"` // "192.168.1.0/24"
	Scope  string `json:"scope"`  // "global" | "link" | "loopback"
}

type HostNetworkOptions struct {
	TTL              time.Duration // cache lifetime, default 15s
	IncludeLoopback  bool
	IncludeLinkLocal bool

	List func() ([]HostAddr, error) // nil = the host's interfaces
}

// HostNetwork lists the host's IPv4 addresses with a small cache. Operators
// use it to see which NIC faces the camera LAN.
type HostNetwork struct {
	opts HostNetworkOptions
	list func() ([]HostAddr, error)
	now  func() time.Time

	mu      sync.RWMutex
	cache   []HostAddr
	expires time.Time
}

func NewHostNetwork(opts HostNetworkOptions) *HostNetwork {
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Second
	}
	h := &HostNetwork{opts: opts, now: time.Now}
	h.list = opts.List
	if h.list == nil {
		h.list = h.listInterfaces
	}
	return h
}

// Addrs returns the cached address list, refreshing it when stale.
func (h *HostNetwork) Addrs(ctx context.Context) ([]HostAddr, error) {
	h.mu.RLock()
	if h.cache != nil && h.now().Before(h.expires) {
		out := append([]HostAddr(nil), h.cache...)
		h.mu.RUnlock()
		return out, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cache != nil && h.now().Before(h.expires) {
		return append([]HostAddr(nil), h.cache...), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs, err := h.list()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Iface == addrs[j].Iface {
			return addrs[i].Addr < addrs[j].Addr
		}
		return addrs[i].Iface < addrs[j].Iface
	})
	h.cache = addrs
	h.expires = h.now().Add(h.opts.TTL)
	return append([]HostAddr(nil), addrs...), nil
}

// InterfaceFor names the interface whose subnet contains host, or "" when
// host is not an IPv4 literal on a directly attached network.
func (h *HostNetwork) InterfaceFor(ctx context.Context, host string) string {
	ip, err := netip.ParseAddr(host)
	if err != nil || !ip.Is4() {
		return ""
	}
	addrs, err := h.Addrs(ctx)
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		p, err := netip.ParsePrefix(a.Prefix)
		if err == nil && p.Contains(ip) {
			return a.Iface
		}
	}
	return ""
}

func (h *HostNetwork) listInterfaces() ([]HostAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []HostAddr
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, _ := ifc.Addrs()
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipnet.IP.To4()
			if v4 == nil {
				continue
			}
			scope := classifyScope(v4)
			if (scope == "loopback" && !h.opts.IncludeLoopback) || (scope == "link" && !h.opts.IncludeLinkLocal) {
				continue
			}
			ones, bits := ipnet.Mask.Size()
			if bits == 8*net.IPv6len {
				ones -= 96 // v4 address with a v4-in-v6 mask
			}
			ip, _ := netip.AddrFromSlice(v4)
			out = append(out, HostAddr{
				Iface:  ifc.Name,
				Addr:   ip.String(),
				Prefix: netip.PrefixFrom(ip, ones).Masked().String(),
				Scope:  scope,
			})
		}
	}
	return out, nil
}

func classifyScope(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsLinkLocalUnicast():
		return "link"
	default:
		return "global"
	}
}
