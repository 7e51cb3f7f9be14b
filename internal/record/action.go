package record

import "strings"

// Action is the firewall verdict carried by a record.
type Action uint8

const (
	ActionNone Action = iota
	ActionAccept
	ActionDrop
	ActionReject
	ActionLog
	ActionQueue
	ActionTCPReset
	ActionSNAT
	ActionDNAT
	ActionRedirect
	ActionMasquerade
	ActionPortForward
	ActionBounce
	ActionOther
	ActionConnNew
	ActionConnUpdate
	ActionConnDestroy

	numActions
)

var actionNames = [numActions]string{
	ActionNone:        "NONE",
	ActionAccept:      "ACCEPT",
	ActionDrop:        "DROP",
	ActionReject:      "REJECT",
	ActionLog:         "LOG",
	ActionQueue:       "QUEUE",
	ActionTCPReset:    "TCPRESET",
	ActionSNAT:        "SNAT",
	ActionDNAT:        "DNAT",
	ActionRedirect:    "REDIRECT",
	ActionMasquerade:  "MASQ",
	ActionPortForward: "PORTFW",
	ActionBounce:      "BOUNCE",
	ActionOther:       "OTHER",
	ActionConnNew:     "NEW",
	ActionConnUpdate:  "UPDATE",
	ActionConnDestroy: "DESTROY",
}

// prefix keywords, including the long spellings rule generators emit
var keywords = map[string]Action{
	"ACCEPT":      ActionAccept,
	"DROP":        ActionDrop,
	"REJECT":      ActionReject,
	"LOG":         ActionLog,
	"QUEUE":       ActionQueue,
	"NFQUEUE":     ActionQueue,
	"TCPRESET":    ActionTCPReset,
	"SNAT":        ActionSNAT,
	"DNAT":        ActionDNAT,
	"REDIRECT":    ActionRedirect,
	"MASQ":        ActionMasquerade,
	"MASQUERADE":  ActionMasquerade,
	"PORTFW":      ActionPortForward,
	"PORTFORWARD": ActionPortForward,
	"BOUNCE":      ActionBounce,
}

func (a Action) String() string {
	if a < numActions {
		return actionNames[a]
	}
	return "OTHER"
}

// Valid reports whether the record carried an action at all.
func (a Action) Valid() bool {
	return a != ActionNone
}

// IsConn reports whether a is one of the connection-tracking kinds.
func (a Action) IsConn() bool {
	return a == ActionConnNew || a == ActionConnUpdate || a == ActionConnDestroy
}

// Actions lists every valid action in display order.
func Actions() []Action {
	out := make([]Action, 0, numActions-1)
	for a := ActionAccept; a < numActions; a++ {
		out = append(out, a)
	}
	return out
}

// ParsePrefix splits an nflog prefix such as "scribe: DROP lan-in " into the
// action and the remaining text. An optional leading "tag:" is skipped. An
// empty prefix yields ActionNone; an unknown keyword yields ActionOther with
// the whole text kept as the remainder.
func ParsePrefix(prefix string) (Action, string) {
	s := strings.TrimSpace(prefix)
	if tag, rest, ok := strings.Cut(s, ":"); ok && !strings.ContainsAny(tag, " \t") {
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return ActionNone, ""
	}

	word, rest, _ := strings.Cut(s, " ")
	if a, ok := keywords[strings.ToUpper(word)]; ok {
		return a, strings.TrimSpace(rest)
	}
	return ActionOther, s
}
