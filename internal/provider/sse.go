package provider

import (
	"bufio"
	"bytes"
	"io"
)

// sseReader incrementally parses Server-Sent Events from an upstream
// response body. Partial lines are held by the buffered reader until the
// terminating newline arrives, so a fragment split across reads is
// reassembled before it is surfaced.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r)}
}

// next returns the event type and data payload of the next event.
// Multi-line data fields are joined with newlines. Returns io.EOF once
// the stream is exhausted.
func (s *sseReader) next() (eventType string, data []byte, err error) {
	var dataLines [][]byte

	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[len("data:"):]))
		}
		// id:, retry: and comment lines are ignored.
	}
}
