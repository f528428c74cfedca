package httpx

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shivanshkc/tokbench/pkg/streams"
)

const (
	// framePrefix marks the lines of a response body that carry a payload.
	framePrefix = "data: "
	// frameSentinel is the payload that terminates the stream.
	frameSentinel = "[DONE]"
)

// Frame is one "data: " line read from a streamed response body.
type Frame struct {
	// Index is the position of the line in the body, counting every line read.
	Index int
	// Data is the payload with the prefix and surrounding whitespace removed.
	Data string
	// Error is set on the final frame if reading the body failed.
	Error error
	// Received is the local time at which the line came off the wire.
	Received time.Time
}

// ReadFrames reads the given body as a sequence of newline-delimited frames and
// returns a stream of them.
//
// Only lines starting with "data: " produce frames. Blank lines and any other
// lines (comments, "event:" fields) are skipped. The stream ends at the
// "[DONE]" sentinel, at EOF, or with a final error frame if reading fails.
//
// It takes ownership of the body and guarantees it will be closed, including
// when ctx is canceled while a read is blocked.
func ReadFrames(ctx context.Context, body io.ReadCloser) *streams.Stream[Frame] {
	frameChan := make(chan Frame, 100)

	// producerCtx ends when the producer returns or the parent is canceled.
	producerCtx, cancel := context.WithCancel(ctx)

	// Closing the body is the only way to unblock a pending Read.
	go func() {
		<-producerCtx.Done()
		_ = body.Close()
	}()

	// emit prefers buffer space over noticing cancellation, so a final error
	// frame is not lost to a select race.
	emit := func(frame Frame) bool {
		select {
		case frameChan <- frame:
			return true
		default:
		}
		select {
		case frameChan <- frame:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(frameChan)
		defer func() {
			cancel()
			_ = body.Close()
		}()

		reader := bufio.NewReader(body)

		for index := 0; ; index++ {
			line, err := reader.ReadString('\n')
			received := time.Now() // Stamp before doing anything else with the line.

			// A last line without a trailing newline arrives together with EOF.
			if line != "" {
				data, ok := parseFrameLine(line)
				switch {
				case !ok:
				case data == frameSentinel:
					return
				default:
					if !emit(Frame{Index: index, Data: data, Received: received}) {
						return
					}
				}
			}

			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				if !errors.Is(err, io.EOF) {
					emit(Frame{Index: index, Error: err, Received: received})
				}
				return
			}
		}
	}()

	return streams.New(frameChan)
}

// parseFrameLine extracts the payload of a "data: " line.
//
// It must stay cheap, since it runs between reading a line and reading the next.
func parseFrameLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, framePrefix) {
		return "", false
	}

	data := strings.TrimSpace(line[len(framePrefix):])
	if data == "" {
		return "", false
	}
	return data, true
}
