package framer

import (
	"bufio"
	"io"
	"strings"
)

// LineReader yields lines with the trailing "\n" or "\r\n" removed.
type LineReader struct {
	br *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line. A final line without a newline is returned
// before io.EOF.
func (l *LineReader) Next() (string, error) {
	s, err := l.br.ReadString('\n')
	if err != nil {
		if s != "" && err == io.EOF {
			return trimEOL(s), nil
		}
		return "", err
	}
	return trimEOL(s), nil
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
