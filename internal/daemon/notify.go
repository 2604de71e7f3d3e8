package daemon

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// tickEvent and graphChangedEvent are the JSON payloads published to NATS —
// a notification side-channel for external observers (e.g. a dashboard).
// Federation itself never depends on these; see internal/federation for the
// actual pull/push transfer algorithm.
type tickEvent struct {
	Tick        uint64    `json:"tick"`
	Timestamp   time.Time `json:"timestamp"`
	AliveAgents int       `json:"alive_agents"`
	ReadyTasks  int       `json:"ready_tasks"`
	Spawned     int       `json:"spawned"`
}

type graphChangedEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

const (
	subjectTick         = "workgraph.tick"
	subjectGraphChanged = "workgraph.graph_changed"
)

// notifier wraps an optional NATS connection. A notifier without a
// connection (no nats_url configured, or the connect failed) makes every
// publish a no-op.
type notifier struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// newNotifier connects to url, returning a no-op notifier if url is empty.
func newNotifier(url string, logger *slog.Logger) *notifier {
	if url == "" {
		return &notifier{logger: logger}
	}
	conn, err := nats.Connect(url)
	if err != nil {
		logger.Warn("nats connect failed, tick/graph_changed notifications disabled", "url", url, "error", err)
		return &notifier{logger: logger}
	}
	return &notifier{conn: conn, logger: logger}
}

func (n *notifier) publishTick(ev tickEvent) {
	if n.conn == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := n.conn.Publish(subjectTick, raw); err != nil {
		n.logger.Warn("nats publish failed", "subject", subjectTick, "error", err)
	}
}

func (n *notifier) publishGraphChanged(ev graphChangedEvent) {
	if n.conn == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := n.conn.Publish(subjectGraphChanged, raw); err != nil {
		n.logger.Warn("nats publish failed", "subject", subjectGraphChanged, "error", err)
	}
}

func (n *notifier) close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
