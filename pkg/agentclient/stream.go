package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"sync"

	"fleetwatch/pkg/models"
)

// LogStream yields log lines relayed by an agent as newline-delimited JSON.
type LogStream struct {
	body      io.ReadCloser
	closeOnce sync.Once
}

func newLogStream(body io.ReadCloser) *LogStream {
	return &LogStream{body: body}
}

// Lines decodes lines lazily. It ends quietly when the agent finishes the
// stream or the stream is closed.
func (s *LogStream) Lines() iter.Seq2[models.LogLine, error] {
	return func(yield func(models.LogLine, error) bool) {
		decoder := json.NewDecoder(s.body)
		for {
			var line models.LogLine
			err := decoder.Decode(&line)
			switch {
			case err == nil:
				if !yield(line, nil) {
					return
				}
			case errors.Is(err, io.EOF), closed(err):
				return
			default:
				yield(models.LogLine{}, errors.Join(ErrDecode, err))
				return
			}
		}
	}
}

// Close tears down the HTTP stream. It is safe to call more than once.
func (s *LogStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

func closed(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, http.ErrBodyReadAfterClose) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "use of closed")
}
