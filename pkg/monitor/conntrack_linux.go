//go:build linux

package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/kisy/netmole/model"
	"github.com/ti-mo/conntrack"
	"github.com/ti-mo/netfilter"
	"go.uber.org/multierr"
)

type flowDumper interface {
	Dump(opts *conntrack.DumpOptions) ([]conntrack.Flow, error)
	Close() error
}

type flowState struct {
	LastOriginBytes uint64
	LastReplyBytes  uint64
	seen            uint64 // Dump generation that last reported this flow
}

// ConntrackSampler turns per-flow conntrack accounting into two running totals.
// Orig-direction bytes count as sent, reply-direction bytes as received.
// Requires net.netfilter.nf_conntrack_acct=1, otherwise every counter reads 0.
type ConntrackSampler struct {
	clk clock.Clock

	dial   func() (*conntrack.Conn, error)
	listen *conntrack.Conn
	dump   flowDumper
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	lastState map[uint32]*flowState // Key: FlowID
	retired   map[uint32]uint64     // FlowID -> generation it was pruned in
	destroyed map[uint32]uint64     // FlowID -> generation its destroy event arrived in
	gen       uint64
	seeded    bool

	totalRecv uint64
	totalSent uint64
}

func newConntrackSampler(clk clock.Clock) (Sampler, error) {
	s := newConntrackState(clk)
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func newConntrackState(clk clock.Clock) *ConntrackSampler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConntrackSampler{
		clk:       clk,
		dial:      func() (*conntrack.Conn, error) { return conntrack.Dial(nil) },
		ctx:       ctx,
		cancel:    cancel,
		lastState: make(map[uint32]*flowState),
		retired:   make(map[uint32]uint64),
		destroyed: make(map[uint32]uint64),
	}
}

func (s *ConntrackSampler) start() (err error) {
	defer func() {
		if err != nil {
			s.cancel()
		}
	}()

	c, err := s.dial()
	if err != nil {
		return fmt.Errorf("%w: failed to dial conntrack: %v", ErrUnavailableCounters, err)
	}

	// Increase socket buffer size to avoid "no buffer space available" on high traffic
	if err := c.SetReadBuffer(2097152); err != nil { // 2MB
		c.Close()
		return fmt.Errorf("failed to set read buffer: %w", err)
	}

	// Destroy events carry the final counters of flows that end between polls
	evCh := make(chan conntrack.Event, 2048)
	errCh, err := c.Listen(evCh, 1, []netfilter.NetlinkGroup{netfilter.GroupCTDestroy})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to listen to conntrack: %w", err)
	}

	pc, err := s.dial()
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: failed to dial polling conntrack: %v", ErrUnavailableCounters, err)
	}
	s.listen = c
	s.dump = pc

	// Seed: flows that already exist contribute nothing
	if err := s.poll(); err != nil {
		return multierr.Append(err, s.Close())
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case err := <-errCh:
				log.Warnw("conntrack listen error", "err", err)
			case ev, ok := <-evCh:
				if !ok {
					return
				}
				if ev.Type == conntrack.EventDestroy && ev.Flow != nil {
					s.destroyFlow(*ev.Flow)
				}
			}
		}
	}()
	return nil
}

func (s *ConntrackSampler) Sample() (model.CounterSample, error) {
	if err := s.poll(); err != nil {
		return model.CounterSample{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CounterSample{
		BytesReceived: s.totalRecv,
		BytesSent:     s.totalSent,
		Timestamp:     s.clk.Now(),
	}, nil
}

func (s *ConntrackSampler) poll() error {
	flows, err := s.dump.Dump(nil)
	if err != nil {
		return fmt.Errorf("%w: conntrack dump: %v", ErrUnavailableCounters, err)
	}
	s.accumulate(flows)
	return nil
}

// accumulate folds one dump into the totals and prunes flows that vanished without a destroy event.
func (s *ConntrackSampler) accumulate(flows []conntrack.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	for _, f := range flows {
		if _, gone := s.destroyed[f.ID]; gone {
			// Dumped before its destroy event was handled; already counted in full
			continue
		}
		curOrig := f.CountersOrig.Bytes
		curReply := f.CountersReply.Bytes

		last, exists := s.lastState[f.ID]
		if !exists {
			last = &flowState{}
			s.lastState[f.ID] = last
			if !s.seeded {
				// Present before we started: baseline only
				last.LastOriginBytes = curOrig
				last.LastReplyBytes = curReply
			}
		}
		last.seen = s.gen

		s.totalSent += safeDelta(curOrig, last.LastOriginBytes)
		s.totalRecv += safeDelta(curReply, last.LastReplyBytes)
		last.LastOriginBytes = curOrig
		last.LastReplyBytes = curReply
	}

	for id, st := range s.lastState {
		if st.seen != s.gen {
			delete(s.lastState, id)
			s.retired[id] = s.gen
		}
	}
	for id, g := range s.retired {
		if g+1 < s.gen {
			delete(s.retired, id)
		}
	}
	for id, g := range s.destroyed {
		if g+1 < s.gen {
			delete(s.destroyed, id)
		}
	}
	s.seeded = true
}

func (s *ConntrackSampler) destroyFlow(f conntrack.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		return
	}
	last, exists := s.lastState[f.ID]
	if _, dup := s.destroyed[f.ID]; dup {
		return
	}
	if !exists {
		if _, pruned := s.retired[f.ID]; pruned {
			return
		}
		// Born and gone between two polls
		last = &flowState{}
	}
	s.totalSent += safeDelta(f.CountersOrig.Bytes, last.LastOriginBytes)
	s.totalRecv += safeDelta(f.CountersReply.Bytes, last.LastReplyBytes)
	delete(s.lastState, f.ID)
	s.destroyed[f.ID] = s.gen
}

func (s *ConntrackSampler) Close() error {
	s.cancel()
	s.wg.Wait()

	var err error
	if s.listen != nil {
		err = multierr.Append(err, s.listen.Close())
	}
	if s.dump != nil {
		err = multierr.Append(err, s.dump.Close())
	}
	return err
}

// safeDelta treats a decreasing counter (flow ID reuse, counter reset) as no traffic.
func safeDelta(cur, last uint64) uint64 {
	if cur >= last {
		return cur - last
	}
	return 0
}
