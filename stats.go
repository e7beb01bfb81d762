package adv3

import (
	"fmt"
	"sync/atomic"
)

type Stats struct {
	SentBytes uint64
	RecvBytes uint64
	Commands  uint64
	Errors    uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("sent: %d recv: %d commands: %d errors: %d", st.SentBytes, st.RecvBytes, st.Commands, st.Errors)
}

type counters struct {
	sent, recv, commands, errors atomic.Uint64
}

// Stats returns the wire counters of the session, they survive reconnects.
func (s *Session) Stats() Stats {
	return Stats{
		SentBytes: s.stats.sent.Load(),
		RecvBytes: s.stats.recv.Load(),
		Commands:  s.stats.commands.Load(),
		Errors:    s.stats.errors.Load(),
	}
}
