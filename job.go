package adv3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// UserDir is where uploaded files end up on the printer
const UserDir = "0:/user/"

// Job is one file upload. Cancel may be called from any goroutine, it is
// picked up at the next chunk boundary.
type Job struct {
	Name string
	// OnProgress is called after every chunk with the bytes left to send
	OnProgress func(remaining, total int64)

	total     atomic.Int64
	remaining atomic.Int64
	cancelled atomic.Bool
}

func NewJob(name string) *Job {
	return &Job{Name: filepath.Base(name)}
}

// Path is the file name as seen by the printer.
func (j *Job) Path() string {
	return UserDir + j.Name
}

func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Progress returns the byte counters, both are 0 when no transfer runs.
func (j *Job) Progress() (remaining, total int64) {
	return j.remaining.Load(), j.total.Load()
}

func (j *Job) begin(size int64) {
	j.cancelled.Store(false)
	j.total.Store(size)
	j.remaining.Store(size)
}

func (j *Job) advance(n int64) {
	rem := j.remaining.Add(-n)
	if j.OnProgress != nil {
		j.OnProgress(rem, j.total.Load())
	}
}

func (j *Job) reset() {
	j.total.Store(0)
	j.remaining.Store(0)
}

// StartJob uploads size bytes from r as job and starts printing it. The
// machine state shows Transfer while it runs and is restored afterwards,
// whatever the outcome. Cancelling ctx cancels the job.
func (s *Session) StartJob(ctx context.Context, v Variant, r io.Reader, size int64, job *Job) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	log := s.log.WithField("job", job.Name)

	job.begin(size)
	prev := s.setState(StateTransfer)
	defer func() {
		s.setState(prev)
		job.reset()
	}()

	stop := context.AfterFunc(ctx, job.Cancel)
	defer stop()

	if err := s.Command(fmt.Sprintf("M28 %d %s", size, job.Path())); err != nil {
		return err
	}
	log.WithField("variant", v).Infof("sending %d bytes", size)

	src := io.LimitReader(r, size)
	var err error
	switch v {
	case VariantStream:
		err = s.sendStream(src, job)
	default:
		err = s.sendFramed(src, job)
	}
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			s.endWrite(log)
		}
		return err
	}

	if job.Cancelled() {
		log.Warn("transfer cancelled")
		s.Write([]byte(CommandPrefix + "M29" + CRLF))
		s.cancelTransfer(ctx, v)
		return ErrCancelled
	}
	if rem, _ := job.Progress(); rem > 0 {
		s.endWrite(log)
		return fmt.Errorf("%w: %d bytes missing", ErrShortRead, rem)
	}

	if err := s.Command("M29"); err != nil {
		return err
	}
	if err := s.Command("M23 " + job.Path()); err != nil {
		return err
	}
	log.Info("print started")
	return nil
}

// endWrite takes the printer out of receive mode after a failed upload.
func (s *Session) endWrite(log logrus.FieldLogger) {
	if s.conn == nil {
		return
	}
	log.Warn("upload failed, ending write")
	if _, err := s.Send("M29"); err != nil {
		log.WithError(err).Warn("ending write failed")
	}
}
