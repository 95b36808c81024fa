package containers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"fleetwatch/pkg/models"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

const maxLineLen = 1 << 20

// LogStream yields container log lines lazily from an open response body.
type LogStream struct {
	body      io.ReadCloser
	reader    io.ReadCloser
	closeOnce sync.Once
}

// newLogStream wraps body without reading from it. Multiplexed bodies are
// demultiplexed by a goroutine that ends with the body.
func newLogStream(body io.ReadCloser, multiplexed bool) *LogStream {
	if !multiplexed {
		return &LogStream{body: body, reader: body}
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, body)
		_ = pw.CloseWithError(err)
	}()
	return &LogStream{body: body, reader: pr}
}

// Lines iterates over the stream until it ends, fails or is closed. A
// stream can be consumed once.
func (s *LogStream) Lines() iter.Seq2[models.LogLine, error] {
	return func(yield func(models.LogLine, error) bool) {
		scanner := bufio.NewScanner(s.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)
		for scanner.Scan() {
			if !yield(ParseLogLine(scanner.Text()), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !isClosedErr(err) {
			yield(models.LogLine{}, err)
		}
	}
}

// Close releases the underlying connection. It is safe to call more than
// once and from another goroutine.
func (s *LogStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		if s.reader != s.body {
			_ = s.reader.Close()
		}
	})
	return err
}

// ParseLogLine splits a runtime log line of the form "<rfc3339> <text>".
// Lines without a valid timestamp keep their full text and a zero time.
func ParseLogLine(raw string) models.LogLine {
	raw = strings.TrimRight(raw, "\r")
	stamp, rest, found := strings.Cut(raw, " ")
	if !found {
		stamp, rest = raw, ""
	}

	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return models.LogLine{Line: raw}
	}
	return models.LogLine{Timestamp: ts.UTC(), Line: rest}
}

// StatsStream yields statistics samples from a streaming stats response.
type StatsStream struct {
	body      io.ReadCloser
	closeOnce sync.Once
}

// Samples iterates over decoded samples until the stream ends, fails or is
// closed.
func (s *StatsStream) Samples() iter.Seq2[models.ContainerStatistics, error] {
	return func(yield func(models.ContainerStatistics, error) bool) {
		decoder := json.NewDecoder(s.body)
		for {
			var raw container.StatsResponse
			if err := decoder.Decode(&raw); err != nil {
				if !errors.Is(err, io.EOF) && !isClosedErr(err) {
					yield(models.ContainerStatistics{}, err)
				}
				return
			}
			if !yield(toStatistics(raw), nil) {
				return
			}
		}
	}
}

// Close releases the underlying connection.
func (s *StatsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// isClosedErr reports errors caused by the consumer going away rather than
// by the runtime.
func isClosedErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, http.ErrBodyReadAfterClose) ||
		strings.Contains(err.Error(), "use of closed")
}
