package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostNetworkCachesAndMatches(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	calls := 0
	h := NewHostNetwork(HostNetworkOptions{TTL: time.Minute})
	h.now = func() time.Time { return now }
	h.list = func() ([]HostAddr, error) {
		calls++
		return []HostAddr{
			{Iface: "eth1", Addr: "192.168.1.2", Prefix: "192.168.1.0/24", Scope: "global"},
			{Iface: "eth0", Addr: "10.0.0.7", Prefix: "10.0.0.0/8", Scope: "global"},
		}, nil
	}
	ctx := context.Background()

	addrs, err := h.Addrs(ctx)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "eth0", addrs[0].Iface, "sorted by interface")

	assert.Equal(t, "eth1", h.InterfaceFor(ctx, "192.168.1.20"))
	assert.Equal(t, "eth0", h.InterfaceFor(ctx, "10.20.30.40"))
	assert.Empty(t, h.InterfaceFor(ctx, "172.16.0.1"))
	assert.Empty(t, h.InterfaceFor(ctx, "cam-a.lan"))
	assert.Equal(t, 1, calls, "served from cache")

	now = now.Add(2 * time.Minute)
	_, err = h.Addrs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "refreshed after ttl")
}

func TestHostNetworkErrors(t *testing.T) {
	h := NewHostNetwork(HostNetworkOptions{})
	h.list = func() ([]HostAddr, error) { return nil, errors.New("netlink: permission denied") }

	_, err := h.Addrs(context.Background())
	assert.ErrorContains(t, err, "list interfaces")
	assert.Empty(t, h.InterfaceFor(context.Background(), "192.168.1.20"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Addrs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHostNetworkListsRealInterfaces(t *testing.T) {
	h := NewHostNetwork(HostNetworkOptions{IncludeLoopback: true})
	addrs, err := h.Addrs(context.Background())
	require.NoError(t, err)
	for _, a := range addrs {
		assert.NotEmpty(t, a.Iface)
		assert.Contains(t, a.Prefix, "/")
	}
}
