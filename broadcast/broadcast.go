// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/room"
	"github.com/wfunc/chessrelay/session"
)

var ErrRecipientGone = errors.New("recipient has no live session")

// Directory resolves participant handles to live sessions.
type Directory interface {
	Get(sessionID string) (*session.Session, bool)
}

// Result reports one fan-out. Err aggregates every per-recipient failure.
type Result struct {
	Sent int
	Err  error
}

// Notifier delivers membership events to the participants of a room. It
// keeps no state of its own.
type Notifier struct {
	sessions Directory
}

func NewNotifier(sessions Directory) *Notifier {
	return &Notifier{sessions: sessions}
}

// Notify sends event to every participant of r except the one whose handle
// is except (empty means nobody is skipped). A failed delivery never stops
// the remaining ones.
func (n *Notifier) Notify(r *room.Room, except, event string, payload any) Result {
	var res Result
	for _, p := range r.Others(except) {
		if err := n.deliver(p.Handle, event, payload); err != nil {
			res.Err = multierr.Append(res.Err, err)
			continue
		}
		res.Sent++
	}
	if res.Err != nil {
		logger.Log.Warnf("Room %s: %s delivered to %d, failed: %v", r.ID, event, res.Sent, res.Err)
	}
	return res
}

func (n *Notifier) deliver(handle, event string, payload any) error {
	s, ok := n.sessions.Get(handle)
	if !ok {
		return fmt.Errorf("%s: %w", handle, ErrRecipientGone)
	}
	return s.Send(event, payload)
}
