// Package command resolves operator-typed tokens to actions by unambiguous
// prefix.
package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dkeye/vlcsync/internal/domain"
)

// Action is the closed set of operator actions.
type Action int

const (
	ActionNone Action = iota
	ActionHelp
	ActionPlay
	ActionPause
	ActionAllSync
	ActionQuit
	ActionSync
	ActionStatus
	ActionLoad
)

// Names maps every full action name to its action.
var Names = map[string]Action{
	"help":    ActionHelp,
	"play":    ActionPlay,
	"pause":   ActionPause,
	"allsync": ActionAllSync,
	"quit":    ActionQuit,
	"sync":    ActionSync,
	"status":  ActionStatus,
	"load":    ActionLoad,
}

func (a Action) String() string {
	for name, v := range Names {
		if v == a {
			return name
		}
	}
	return "none"
}

// Table maps every unambiguous prefix of the registered names to its action.
type Table map[string]Action

// Build walks each name's prefixes left to right. A prefix produced by two
// different names is removed and stays removed; every other prefix maps to
// the single name that produced it.
func Build(names map[string]Action) Table {
	keys := make([]string, 0, len(names))
	for name := range names {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	table := make(Table)
	ambiguous := make(map[string]struct{})
	for _, name := range keys {
		action := names[name]
		for i := 1; i <= len(name); i++ {
			prefix := name[:i]
			if _, ok := ambiguous[prefix]; ok {
				continue
			}
			if _, ok := table[prefix]; ok {
				delete(table, prefix)
				ambiguous[prefix] = struct{}{}
				continue
			}
			table[prefix] = action
		}
	}
	return table
}

// Lookup is a case-sensitive exact match against the table keys.
func (t Table) Lookup(token string) (Action, error) {
	if a, ok := t[token]; ok {
		return a, nil
	}
	return ActionNone, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, token)
}

// Line is one operator input line split into command token and arguments.
type Line struct {
	Command string
	// Rest is everything after the command token, untouched.
	Rest string
	Args []string
}

// Parse splits a line at the first space; the remainder is split on spaces
// into Args.
func Parse(raw string) Line {
	raw = strings.TrimSpace(raw)
	cmd, rest, found := strings.Cut(raw, " ")
	l := Line{Command: cmd}
	if found {
		l.Rest = strings.TrimSpace(rest)
		if l.Rest != "" {
			l.Args = strings.Split(l.Rest, " ")
		}
	}
	return l
}
