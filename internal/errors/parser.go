package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// Problem is one located failure inside a template file.
type Problem struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// String formats the problem as file:line:col: message.
func (p Problem) String() string {
	var b strings.Builder
	b.WriteString(p.File)
	if p.Line > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(p.Line))
		if p.Column > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(p.Column))
		}
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ErrorParser extracts location data from template engine messages such as
//
//	template: pages/index.html:3: unexpected "}" in operand
//	template: pages/index.html:1:8: executing "pages/index.html" at <.name>: map has no entry for key "name"
type ErrorParser struct {
	location   *regexp.Regexp
	missingKey *regexp.Regexp
	executing  *regexp.Regexp
}

// NewErrorParser creates a new error parser
func NewErrorParser() *ErrorParser {
	return &ErrorParser{
		location:   regexp.MustCompile(`^template: (.+?):(\d+)(?::(\d+))?: (.*)$`),
		missingKey: regexp.MustCompile(`map has no entry for key "([^"]*)"`),
		executing:  regexp.MustCompile(`^executing "[^"]*" at <[^>]*>: `),
	}
}

// defaultParser is safe for concurrent use; compiled regexps are immutable.
var defaultParser = NewErrorParser()

// ParseProblem turns an engine error into a Problem. When the message carries
// no location, file is used as the problem's file.
func (ep *ErrorParser) ParseProblem(file string, err error) Problem {
	if err == nil {
		return Problem{File: file}
	}
	msg := strings.TrimSpace(err.Error())

	// Only the first line carries the location.
	first := msg
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		first = msg[:i]
	}

	matches := ep.location.FindStringSubmatch(first)
	if matches == nil {
		return Problem{File: file, Message: msg}
	}

	line, _ := strconv.Atoi(matches[2])
	column := 0
	if matches[3] != "" {
		column, _ = strconv.Atoi(matches[3])
	}

	return Problem{
		File:    matches[1],
		Line:    line,
		Column:  column,
		Message: ep.executing.ReplaceAllString(matches[4], ""),
	}
}

// MissingKey reports the context variable named by a missing-key execution
// error.
func (ep *ErrorParser) MissingKey(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	matches := ep.missingKey.FindStringSubmatch(err.Error())
	if matches == nil {
		return "", false
	}
	return matches[1], true
}

// ParseProblem parses err with the package-level parser.
func ParseProblem(file string, err error) Problem {
	return defaultParser.ParseProblem(file, err)
}

// MissingKey extracts a missing variable name with the package-level parser.
func MissingKey(err error) (string, bool) {
	return defaultParser.MissingKey(err)
}
