package adv3

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Opt func(s *Session) error

func OptPort(port int) Opt {
	return func(s *Session) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port: %d", port)
		}
		s.port = port
		return nil
	}
}

// OptTimeout sets how long to wait for the first byte of a reply.
func OptTimeout(d time.Duration) Opt {
	return func(s *Session) error {
		s.timeout = d
		return nil
	}
}

// OptIdleTimeout sets the quiet period that ends a reply.
func OptIdleTimeout(d time.Duration) Opt {
	return func(s *Session) error {
		s.idle = d
		return nil
	}
}

func OptDialTimeout(d time.Duration) Opt {
	return func(s *Session) error {
		s.dialTimeout = d
		return nil
	}
}

func OptLogger(l logrus.FieldLogger) Opt {
	return func(s *Session) error {
		if l == nil {
			return fmt.Errorf("nil logger")
		}
		s.log = l
		return nil
	}
}

func OptTiming(t Timing) Opt {
	return func(s *Session) error {
		s.timing = t
		return nil
	}
}

// OptReplyReader replaces the default IdleReplyReader.
func OptReplyReader(r ReplyReader) Opt {
	return func(s *Session) error {
		s.reader = r
		return nil
	}
}

// OptMinimumFirmware makes Connect fail on printers reporting an older
// firmware than version, ie. "1.1.7".
func OptMinimumFirmware(version string) Opt {
	return func(s *Session) error {
		if version != "" && !validVersion(version) {
			return fmt.Errorf("invalid firmware version %q", version)
		}
		s.minFirmware = version
		return nil
	}
}
