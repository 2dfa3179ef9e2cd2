// Package rules evaluates regex rule sets against a message and decides
// its fate: reject, discard, or deliver.
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Options lists the rule patterns, each a regular expression matched
// against the message's header or body text.
type Options struct {
	RejectHeader  []string
	RejectBody    []string
	DiscardHeader []string
	DiscardBody   []string
}

// Action is the fate chosen for a message.
type Action int

const (
	// ActionDeliver accepts the message into a mailbox.
	ActionDeliver Action = iota
	// ActionReject bounces the message to its sender.
	ActionReject
	// ActionDiscard drops the message silently.
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionReject:
		return "reject"
	case ActionDiscard:
		return "discard"
	default:
		return "deliver"
	}
}

// Rules holds the compiled patterns.
type Rules struct {
	rejectHeader  []*regexp.Regexp
	rejectBody    []*regexp.Regexp
	discardHeader []*regexp.Regexp
	discardBody   []*regexp.Regexp
}

// New compiles the rule patterns. An invalid pattern is a construction
// error; rules never fail at evaluation time.
func New(opts Options) (*Rules, error) {
	rejectHeader, err := compilePatterns(opts.RejectHeader)
	if err != nil {
		return nil, fmt.Errorf("compile reject-header pattern: %w", err)
	}
	rejectBody, err := compilePatterns(opts.RejectBody)
	if err != nil {
		return nil, fmt.Errorf("compile reject-body pattern: %w", err)
	}
	discardHeader, err := compilePatterns(opts.DiscardHeader)
	if err != nil {
		return nil, fmt.Errorf("compile discard-header pattern: %w", err)
	}
	discardBody, err := compilePatterns(opts.DiscardBody)
	if err != nil {
		return nil, fmt.Errorf("compile discard-body pattern: %w", err)
	}

	return &Rules{
		rejectHeader:  rejectHeader,
		rejectBody:    rejectBody,
		discardHeader: discardHeader,
		discardBody:   discardBody,
	}, nil
}

// Evaluate returns the action for a message. Reject rules win over
// discard rules; a message matching nothing is delivered.
func (r *Rules) Evaluate(header, body []byte) Action {
	headerText := string(header)
	bodyText := string(body)

	if matchAny(r.rejectHeader, headerText) || matchAny(r.rejectBody, bodyText) {
		return ActionReject
	}
	if matchAny(r.discardHeader, headerText) || matchAny(r.discardBody, bodyText) {
		return ActionDiscard
	}
	return ActionDeliver
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
