//go:build linux

package monitor

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

func link(index int, name string, flags net.Flags, rx, tx uint64) netlink.Link {
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{
		Index:      index,
		Name:       name,
		Flags:      flags,
		Statistics: &netlink.LinkStatistics{RxBytes: rx, TxBytes: tx},
	}}
}

func serve(s *NetlinkSampler, links ...netlink.Link) {
	s.linkList = func() ([]netlink.Link, error) { return links, nil }
}

func TestNetlinkSampler_FirstReadSumsEveryLink(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(50, 0))

	s := NewNetlinkSampler(clk, []string{"lo"})
	serve(s,
		link(1, "lo", net.FlagUp|net.FlagLoopback, 1_000, 1_000),
		link(2, "eth0", net.FlagUp, 4_000, 3_000),
		link(3, "wlan0", net.FlagUp, 1_000, 200),
		link(4, "eth1", 0, 7_777, 7_777), // down
		&netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 5, Name: "nostats", Flags: net.FlagUp}},
	)

	sample, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, uint64(12_777), sample.BytesReceived)
	assert.Equal(t, uint64(10_977), sample.BytesSent)
	assert.Equal(t, clk.Now(), sample.Timestamp)
}

func TestNetlinkSampler_LinkComingUpKeepsTotalsSteady(t *testing.T) {
	clk := clock.NewMock()
	s := NewNetlinkSampler(clk, nil)

	serve(s,
		link(2, "eth0", net.FlagUp, 1_000, 1_000),
		link(3, "eth1", 0, 10_000_000_000, 5_000_000_000),
	)
	first, err := s.Sample()
	require.NoError(t, err)

	clk.Add(time.Second)
	serve(s,
		link(2, "eth0", net.FlagUp, 1_000, 1_000),
		link(3, "eth1", net.FlagUp, 10_000_000_000, 5_000_000_000),
	)
	second, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, first.BytesReceived, second.BytesReceived)
	assert.Equal(t, first.BytesSent, second.BytesSent)

	clk.Add(time.Second)
	serve(s,
		link(2, "eth0", net.FlagUp, 1_500, 1_100),
		link(3, "eth1", net.FlagUp, 10_000_000_300, 5_000_000_000),
	)
	third, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, first.BytesReceived+800, third.BytesReceived)
	assert.Equal(t, first.BytesSent+100, third.BytesSent)
}

func TestNetlinkSampler_AppearingAndVanishingLinks(t *testing.T) {
	s := NewNetlinkSampler(clock.NewMock(), nil)

	serve(s, link(2, "eth0", net.FlagUp, 1_000, 1_000))
	first, err := s.Sample()
	require.NoError(t, err)

	// A link that appears later starts from its current counters
	serve(s,
		link(2, "eth0", net.FlagUp, 1_000, 1_000),
		link(9, "usb0", net.FlagUp, 70_000, 70_000),
	)
	second, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Removing it never lowers the totals
	serve(s, link(2, "eth0", net.FlagUp, 1_200, 1_000))
	third, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, first.BytesReceived+200, third.BytesReceived)
	assert.Equal(t, first.BytesSent, third.BytesSent)
	assert.NotContains(t, s.lastState, 9)

	// Counter reset on a known link adds nothing, then counts from the new value
	serve(s, link(2, "eth0", net.FlagUp, 100, 1_000))
	fourth, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, third.BytesReceived, fourth.BytesReceived)

	serve(s, link(2, "eth0", net.FlagUp, 150, 1_000))
	fifth, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, fourth.BytesReceived+50, fifth.BytesReceived)
}

func TestNetlinkSampler_Unavailable(t *testing.T) {
	s := NewNetlinkSampler(clock.NewMock(), []string{"lo"})

	s.linkList = func() ([]netlink.Link, error) { return nil, errors.New("operation not permitted") }
	_, err := s.Sample()
	assert.ErrorIs(t, err, ErrUnavailableCounters)

	serve(s,
		link(1, "lo", net.FlagUp|net.FlagLoopback, 1, 1),
		&netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 2, Name: "eth0", Flags: net.FlagUp}},
	)
	_, err = s.Sample()
	assert.ErrorIs(t, err, ErrUnavailableCounters)
}
