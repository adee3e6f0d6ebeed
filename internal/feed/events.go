package feed

import (
	"bufio"
	"io"
	"strings"
)

// readFrames calls fn with the data of each event in r until r ends or fn
// returns false. Multiple data lines of one event are joined with "\n";
// comments and other fields are ignored.
func readFrames(r io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			if len(data) > 0 {
				if !fn(strings.Join(data, "\n")) {
					return nil
				}
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
