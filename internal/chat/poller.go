package chat

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfukui/chatline/internal/types"
)

// DefaultPollInterval is deliberately aggressive; the in-flight guard
// keeps slow cycles from piling up. A tunable, not an invariant.
const DefaultPollInterval = 10 * time.Millisecond

// PollerConfig wires a Poller to its collaborators. Unread and Fetch
// are the two remote calls of the protocol; OnMessages and OnBadge are
// presentation callbacks and may be nil.
type PollerConfig struct {
	// ChannelId is the channel the client currently has open.
	ChannelId int64
	// LastSeen seeds the high-water mark when resuming a session.
	LastSeen int64
	Interval time.Duration

	Unread func() ([]types.ChannelUnread, error)
	Fetch  func(afterId int64) ([]types.Message, error)

	OnMessages func(msgs []types.Message)
	// OnBadge receives unread counts for channels other than the open
	// one; zero counts are suppressed before the callback.
	OnBadge func(channelId, unread int64)
}

// Poller runs the client side of the sync protocol: a fixed-interval
// unread poll, followed by an incremental fetch of the open channel
// whenever it reports unread messages. At most one cycle is in flight
// at a time; a tick that arrives while a cycle runs is skipped, not
// queued.
type Poller struct {
	log *log.Logger
	cfg PollerConfig

	lastSeen atomic.Int64
	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewPoller(logger *log.Logger, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	p := &Poller{
		log: logger,
		cfg: cfg,
	}
	p.lastSeen.Store(cfg.LastSeen)
	return p
}

// LastSeen returns the client's current high-water mark.
func (p *Poller) LastSeen() int64 {
	return p.lastSeen.Load()
}

// Sync performs one immediate incremental fetch, as on page load.
func (p *Poller) Sync() error {
	return p.fetchOpenChannel()
}

// Run ticks until ctx is cancelled, then waits for any in-flight cycle
// to finish.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-t.C:
			if !p.inFlight.CompareAndSwap(false, true) {
				continue
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.inFlight.Store(false)
				p.cycle()
			}()
		}
	}
}

// cycle is one iteration of the protocol: poll unread counts, badge
// the background channels, refetch the open channel if it has news. A
// failed cycle just ends; the next tick starts over.
func (p *Poller) cycle() {
	counts, err := p.cfg.Unread()
	if err != nil {
		p.log.Printf("unread poll: %v", err)
		return
	}

	var refetch bool
	for _, c := range counts {
		if c.ChannelId == p.cfg.ChannelId {
			if c.Unread > 0 {
				refetch = true
			}
			continue
		}
		if c.Unread == 0 {
			continue
		}
		if p.cfg.OnBadge != nil {
			p.cfg.OnBadge(c.ChannelId, c.Unread)
		}
	}

	if !refetch {
		return
	}

	if err := p.fetchOpenChannel(); err != nil {
		p.log.Printf("incremental fetch channel=%d: %v", p.cfg.ChannelId, err)
	}
}

func (p *Poller) fetchOpenChannel() error {
	msgs, err := p.cfg.Fetch(p.lastSeen.Load())
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	max := p.lastSeen.Load()
	for _, m := range msgs {
		if m.Id > max {
			max = m.Id
		}
	}
	p.lastSeen.Store(max)

	if p.cfg.OnMessages != nil {
		p.cfg.OnMessages(msgs)
	}
	return nil
}
