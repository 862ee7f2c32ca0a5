package poll

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/api"
	"github.com/velora/popdesk/internal/audio"
	"github.com/velora/popdesk/internal/model"
	"github.com/velora/popdesk/internal/store"
)

// ShowAnnouncementMsg is a tea.Msg sent when a new broadcast should be
// presented to the user.
type ShowAnnouncementMsg struct {
	Announcement model.PendingAnnouncement
}

// AnnouncementClearedMsg is a tea.Msg sent when the shown broadcast was
// deactivated server-side and has been cleared.
type AnnouncementClearedMsg struct {
	NotificationID string
}

// PollErrorMsg is a tea.Msg sent when a poll cycle fails. AuthExpired is set
// when the backend rejected the session token.
type PollErrorMsg struct {
	Err         error
	AuthExpired bool
}

// Fetcher retrieves the active broadcasts for a user.
type Fetcher interface {
	MyNotifications(ctx context.Context, userID string) ([]model.Notification, error)
}

// Identity resolves the current user's id. An empty id means no identity is
// available and the cycle is skipped.
type Identity interface {
	UserID() string
}

const (
	// fetchTimeout bounds a single fetch operation.
	fetchTimeout = 10 * time.Second

	// graceWindow re-arms a last-seen notification id: a repeat observation
	// of the same id past this window is treated as new again.
	graceWindow = 5000 * time.Millisecond

	// errorThreshold is how many consecutive failures are tolerated before
	// the interval starts growing.
	errorThreshold = 3

	// backoffFactor multiplies the interval once past the error threshold.
	backoffFactor = 1.5

	// successDecayThreshold is how many consecutive successes restore the
	// base interval after backoff.
	successDecayThreshold = 3

	// triggerCheckInterval is how often the KV poll-trigger record is
	// checked between regular cycles.
	triggerCheckInterval = time.Second
)

// seenStamp is the persisted last-seen notification id and timestamp backing
// the grace-window logic.
type seenStamp struct {
	ID     string    `json:"id"`
	SeenAt time.Time `json:"seen_at"`
}

// Poller periodically fetches the user's active broadcasts, reconciles them
// against the announcement slot, and drives the chime. Results reach the UI
// as tea.Msg values over a channel.
//
// All fetches run inline in the poll goroutine, so cycles are strictly
// serialized: a slow fetch delays the next tick instead of overlapping it.
type Poller struct {
	fetcher       Fetcher
	identity      Identity
	announcements *store.AnnouncementStore
	kv            store.KV
	chime         *audio.Chime
	log           *zap.Logger

	baseInterval time.Duration
	maxInterval  time.Duration

	resultCh  chan tea.Msg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu       gosync.Mutex
	running  bool
	interval time.Duration
	errCount int
	streak   int
	seen     seenStamp

	now func() time.Time
}

// Options holds the poller's tuning knobs.
type Options struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// New creates a poller. Zero-valued options fall back to 3s base and
// 10s ceiling.
func New(
	fetcher Fetcher,
	identity Identity,
	announcements *store.AnnouncementStore,
	kv store.KV,
	chime *audio.Chime,
	log *zap.Logger,
	opts Options,
) *Poller {
	if opts.BaseInterval <= 0 {
		opts.BaseInterval = 3000 * time.Millisecond
	}
	if opts.MaxInterval < opts.BaseInterval {
		opts.MaxInterval = 10000 * time.Millisecond
	}

	p := &Poller{
		fetcher:       fetcher,
		identity:      identity,
		announcements: announcements,
		kv:            kv,
		chime:         chime,
		log:           log,
		baseInterval:  opts.BaseInterval,
		maxInterval:   opts.MaxInterval,
		resultCh:      make(chan tea.Msg, 16),
		triggerCh:     make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		interval:      opts.BaseInterval,
		now:           time.Now,
	}
	p.loadLastSeen()
	return p
}

// Start launches the poll goroutine and returns a subscription command that
// delivers the next poller message to the Bubble Tea runtime. Calling Start
// twice is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.run()

	return p.waitForResult()
}

// Stop halts the poll goroutine and silences the chime.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
	p.chime.Stop()
}

// RefreshNow asks the poller to run an immediate check, bypassing the timer.
// Used by the broadcast-producer side to cut perceived latency without
// shortening the interval for everyone.
func (p *Poller) RefreshNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A check is already queued.
	}
}

// MarkAcknowledged re-arms the last-seen stamp for an acknowledged
// notification so a lagging backend cannot re-show it within the grace
// window.
func (p *Poller) MarkAcknowledged(notificationID string) {
	p.storeLastSeen(notificationID, p.now())
}

// Interval returns the current poll interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// ConsecutiveErrors returns the current consecutive-failure count.
func (p *Poller) ConsecutiveErrors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errCount
}

// WaitForNextResult returns a tea.Cmd that waits for the next poller
// message. Call it after processing each message to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// run is the poll loop: one immediate cycle, then timer-driven cycles, with
// a faster secondary ticker watching the KV poll-trigger record.
func (p *Poller) run() {
	p.Cycle()

	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	trigger := time.NewTicker(triggerCheckInterval)
	defer trigger.Stop()

	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.Interval())
	}

	for {
		select {
		case <-p.stopCh:
			return

		case <-timer.C:
			p.Cycle()
			timer.Reset(p.Interval())

		case <-p.triggerCh:
			p.Cycle()
			rearm()

		case <-trigger.C:
			fresh, err := store.ConsumePollTrigger(p.kv, p.now())
			if err != nil {
				p.log.Warn("reading poll trigger", zap.Error(err))
				continue
			}
			if fresh {
				p.Cycle()
				rearm()
			}
		}
	}
}

// Cycle performs one fetch-and-reconcile step. Exported for the manual
// check path and for tests; the loop serializes all calls in production.
func (p *Poller) Cycle() {
	userID := p.identity.UserID()
	if userID == "" {
		// No resolvable identity yet; nothing to do this cycle.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	list, err := p.fetcher.MyNotifications(ctx, userID)
	if err != nil {
		p.recordFailure(err)
		return
	}

	p.recordSuccess()
	p.reconcile(list)
}

// recordFailure advances the backoff state. The interval grows by
// backoffFactor once more than errorThreshold consecutive failures have
// occurred, capped at the ceiling.
func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.errCount++
	p.streak = 0
	if p.errCount > errorThreshold {
		grown := time.Duration(float64(p.interval) * backoffFactor)
		if grown > p.maxInterval {
			grown = p.maxInterval
		}
		p.interval = grown
	}
	errCount := p.errCount
	interval := p.interval
	p.mu.Unlock()

	p.log.Warn("notification fetch failed",
		zap.Error(err),
		zap.Int("consecutive_errors", errCount),
		zap.Duration("interval", interval),
	)

	p.send(PollErrorMsg{Err: err, AuthExpired: api.IsAuthError(err)})
}

// recordSuccess resets the failure count. The grown interval is kept until
// successDecayThreshold consecutive successes, then restored to the base.
func (p *Poller) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errCount = 0
	p.streak++
	if p.streak >= successDecayThreshold && p.interval > p.baseInterval {
		p.interval = p.baseInterval
	}
}

// reconcile applies one poll result to the announcement slot, in strict
// order: stale-clear first, then show-new, then last-seen housekeeping.
func (p *Poller) reconcile(list []model.Notification) {
	now := p.now()

	if cur := p.announcements.Current(); cur != nil {
		if containsID(list, cur.NotificationID) {
			return
		}
		// The broadcast was deactivated while on screen. Clear it within
		// this cycle; show-new logic waits for the next one.
		id := cur.NotificationID
		if err := p.announcements.Clear(); err != nil {
			p.log.Error("clearing stale announcement", zap.Error(err))
		}
		p.chime.Stop()
		p.send(AnnouncementClearedMsg{NotificationID: id})
		return
	}

	if len(list) > 0 {
		// The server orders by its own priority; take the head as-is.
		n := list[0]

		seen := p.lastSeen()
		if n.ID == seen.ID && now.Sub(seen.SeenAt) <= graceWindow {
			return
		}

		ann := model.NewPendingAnnouncement(n, now)
		p.storeLastSeen(n.ID, now)
		if err := p.announcements.Save(ann); err != nil {
			p.log.Error("persisting pending announcement", zap.Error(err))
			return
		}
		p.chime.Play()
		p.send(ShowAnnouncementMsg{Announcement: ann})
		return
	}

	// Empty active set: forget the last-seen id so any re-appearance is
	// always treated as new.
	p.clearLastSeen()
}

// lastSeen returns the in-memory last-seen record.
func (p *Poller) lastSeen() seenStamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen
}

// loadLastSeen restores the last-seen record from the KV store. Corrupt
// records are discarded.
func (p *Poller) loadLastSeen() {
	raw, err := p.kv.Get(store.KeyLastSeen)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		return
	}

	var seen seenStamp
	if err := json.Unmarshal([]byte(raw), &seen); err != nil {
		_ = p.kv.Delete(store.KeyLastSeen)
		return
	}

	p.mu.Lock()
	p.seen = seen
	p.mu.Unlock()
}

// storeLastSeen updates the last-seen record in memory and the KV store.
func (p *Poller) storeLastSeen(id string, at time.Time) {
	p.mu.Lock()
	p.seen = seenStamp{ID: id, SeenAt: at}
	seen := p.seen
	p.mu.Unlock()

	data, err := json.Marshal(seen)
	if err != nil {
		return
	}
	if err := p.kv.Set(store.KeyLastSeen, string(data)); err != nil {
		p.log.Warn("persisting last-seen stamp", zap.Error(err))
	}
}

// clearLastSeen forgets the last-seen record.
func (p *Poller) clearLastSeen() {
	p.mu.Lock()
	p.seen = seenStamp{}
	p.mu.Unlock()

	if err := p.kv.Delete(store.KeyLastSeen); err != nil {
		p.log.Warn("clearing last-seen stamp", zap.Error(err))
	}
}

// send delivers a message to the UI without blocking the poll loop.
func (p *Poller) send(msg tea.Msg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if the channel is full to avoid blocking the poller.
	}
}

// waitForResult returns a tea.Cmd that waits for the next poller message.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}

// containsID reports whether the active set includes the given id.
func containsID(list []model.Notification, id string) bool {
	for _, n := range list {
		if n.ID == id {
			return true
		}
	}
	return false
}
