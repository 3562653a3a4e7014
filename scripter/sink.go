package scripter

import (
	"strings"
)

// batchDirectives must run in a batch of their own.
var batchDirectives = []string{"SET ANSI_NULLS", "SET QUOTED_IDENTIFIER"}

// Sink accumulates rendered statement lines and inserts batch separators.
type Sink struct {
	separator string
	lines     []string
	blocks    int
}

// NewSink returns a sink that separates batches with separator.
func NewSink(separator string) *Sink {
	return &Sink{separator: separator}
}

// Block adds the lines of one object. Every batch directive line is followed
// by a separator and the block ends with one.
func (s *Sink) Block(lines []string) {
	for _, line := range lines {
		s.lines = append(s.lines, line)
		if isBatchDirective(line) {
			s.lines = append(s.lines, s.separator)
		}
	}
	s.lines = append(s.lines, s.separator)
	s.blocks++
}

// Lines returns everything added so far.
func (s *Sink) Lines() []string { return s.lines }

// Blocks returns the number of object blocks added.
func (s *Sink) Blocks() int { return s.blocks }

// Reset discards the accumulated lines.
func (s *Sink) Reset() {
	s.lines = s.lines[:0]
	s.blocks = 0
}

// WriteFile writes the lines to path, one per line. With appendTo set the
// lines are added to the end of an existing file, otherwise it is truncated.
func (s *Sink) WriteFile(path string, appendTo bool) error {
	return writeLines(path, s.lines, appendTo)
}

func isBatchDirective(line string) bool {
	for _, d := range batchDirectives {
		if strings.HasPrefix(line, d) {
			return true
		}
	}
	return false
}
