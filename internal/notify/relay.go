package notify

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"location-logger/internal/geocode"
	"location-logger/internal/models"
	"location-logger/internal/observability"
)

// Probe reports current network reachability and the connection type name.
type Probe interface {
	IsConnected() (bool, string)
}

// Messenger is the primary notification transport. A send succeeds iff the
// returned message id is positive.
type Messenger interface {
	Send(destination, text string) (int64, error)
}

// TextSender is the guaranteed-delivery fallback transport. Plain text only.
type TextSender interface {
	Send(number, text string) error
}

const (
	reachabilityAttempts = 10
	reachabilityDelay    = 5 * time.Second
)

// Relay notifies significant location events: it debounces, waits for the
// network to come back, composes a formatted message with a resolved address,
// sends it via the primary transport and falls back to SMS on failure.
// One Notify call at a time; event notifications are low-frequency.
type Relay struct {
	probe    Probe
	primary  Messenger
	fallback TextSender
	geo      *geocode.Cache
	debounce *Debouncer
	log      *slog.Logger

	chatID       string
	notifyNumber string

	waitDelay time.Duration
	sleep     func(time.Duration)
}

// NewRelay wires up a notification relay. notifyNumber may be empty, in
// which case failed notifications are dropped after logging.
func NewRelay(probe Probe, primary Messenger, fallback TextSender, geo *geocode.Cache,
	chatID, notifyNumber string, log *slog.Logger) *Relay {
	return &Relay{
		probe:        probe,
		primary:      primary,
		fallback:     fallback,
		geo:          geo,
		debounce:     NewDebouncer(),
		log:          log.With("component", "relay"),
		chatID:       chatID,
		notifyNumber: notifyNumber,
		waitDelay:    reachabilityDelay,
		sleep:        time.Sleep,
	}
}

// Notify sends the sample's event through some transport. Network and
// transport errors are never raised to the caller; the return value says
// whether any transport ultimately delivered the message. Samples with
// nothing to say and debounced events count as delivered no-ops.
//
// The reachability wait can block for up to 50 seconds, so this belongs off
// any latency-sensitive path.
func (r *Relay) Notify(loc *models.Location) bool {
	if !loc.HasEvent() {
		return true
	}

	if r.debounce.TooFast(loc) {
		r.log.Debug("event suppressed by debounce window", "event", loc.Event)
		observability.NotifySuppressed.Inc()
		return true
	}

	// Location events often fire the instant connectivity is regained, so
	// give the network a bounded chance to come back before composing.
	netType := r.waitForNetwork()

	message := r.eventMessage(loc, netType)

	id, err := r.primary.Send(r.chatID, message)
	if err == nil && id > 0 {
		observability.NotifyDelivered.Inc()
		return true
	}
	if err != nil {
		r.log.Warn("primary transport failed", "event", loc.Event, "error", err)
	}

	return r.sendBackup(message)
}

func (r *Relay) waitForNetwork() string {
	for attempt := reachabilityAttempts; attempt > 0; attempt-- {
		if ok, name := r.probe.IsConnected(); ok {
			return name
		}
		r.log.Debug("not connected, waiting for network", "attempts_left", attempt-1)
		r.sleep(r.waitDelay)
	}
	return "-"
}

// sendBackup strips emphasis markers and pushes the message through the
// fallback transport. With no number configured the event is dropped; that is
// the accepted best-effort guarantee.
func (r *Relay) sendBackup(message string) bool {
	if r.notifyNumber == "" || r.fallback == nil {
		r.log.Warn("no fallback number configured, dropping notification")
		observability.NotifyDropped.Inc()
		return false
	}

	plain := strings.NewReplacer("*", "", "_", "", "%", "").Replace(message)
	if err := r.fallback.Send(r.notifyNumber, plain); err != nil {
		r.log.Warn("fallback transport failed", "error", err)
		observability.NotifyDropped.Inc()
		return false
	}

	observability.NotifyFallback.Inc()
	return true
}

func (r *Relay) eventMessage(loc *models.Location, netType string) string {
	event := "INFO"
	if loc.Event != "" {
		event = strings.ToUpper(loc.Event)
	}

	var message strings.Builder
	fmt.Fprintf(&message, "*%s!*\n\n", event)

	if loc.ExtraInfo != "" {
		fmt.Fprintf(&message, "_%s_\n\n", strings.TrimSpace(loc.ExtraInfo))
	}

	lat := strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
	lon := strconv.FormatFloat(loc.Longitude, 'f', -1, 64)

	fmt.Fprintf(&message, "*Location:*\t[%s](https://www.google.com/maps/search/?api=1&query=%s,%s)\n",
		r.addressLabel(loc), lat, lon)
	fmt.Fprintf(&message, "*Accuracy:*\t%vm %s%s\n",
		models.Round2(loc.Accuracy), initial(loc.Provider), initial(netType))
	fmt.Fprintf(&message, "*Time:*\t%s\n", loc.Time().Format("2006-01-02 15:04:05 PM"))
	fmt.Fprintf(&message, "*Battery:*\t%d%%", loc.DisplayBattery())

	return message.String()
}

// addressLabel resolves a display label for the sample's position: cache
// first, then the remote service, then the raw coordinates. A notification is
// never blocked or dropped because geocoding failed.
func (r *Relay) addressLabel(loc *models.Location) string {
	address := r.geo.FromCache(loc)
	if address == "" {
		address = r.geo.FromRemote(loc)
		if address != "" {
			r.geo.AddToCache(loc, address)
		}
	}
	if address == "" {
		address = fmt.Sprintf("%v,%v", loc.Latitude, loc.Longitude)
	}
	return address
}

func initial(s string) string {
	if s == "" {
		return "?"
	}
	return s[:1]
}

// Storer adapter: the relay slots into a storage session as the side channel.

// Open is a no-op; the relay holds no session resources.
func (r *Relay) Open() error { return nil }

// StoreLocation notifies the sample's event, if any.
func (r *Relay) StoreLocation(loc *models.Location) bool { return r.Notify(loc) }

// Close is a no-op.
func (r *Relay) Close() error { return nil }
