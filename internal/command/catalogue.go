// ABOUTME: Closed catalogue of authorizable command identifiers
// ABOUTME: Identifiers are (Subsystem, Action) pairs parsed from "SUBSYSTEM.ACTION" strings

package command

import (
	"errors"
	"fmt"
	"strings"
)

// Subsystem groups related administrative actions.
type Subsystem string

const (
	// SubsystemPanel covers hosting-panel maintenance actions.
	SubsystemPanel Subsystem = "PANEL"
	// SubsystemDNS covers name-server maintenance actions.
	SubsystemDNS Subsystem = "DNS"
)

// Action is one administrative action within a subsystem.
type Action string

const (
	ActionGetLoginLink    Action = "GET_LOGIN_LINK"
	ActionGetSubscription Action = "GET_SUBSCRIPTION"
	ActionCreateMailbox   Action = "CREATE_MAILBOX"
	ActionRestartService  Action = "RESTART_SERVICE"
	ActionRemoveZone      Action = "REMOVE_ZONE"
	ActionGetZoneMaster   Action = "GET_ZONE_MASTER"
)

// Identifier names exactly one operation in the catalogue.
type Identifier struct {
	Subsystem Subsystem
	Action    Action
}

// String returns the wire form "SUBSYSTEM.ACTION".
func (id Identifier) String() string {
	return string(id.Subsystem) + "." + string(id.Action)
}

// Catalogue lists every authorizable identifier. The dispatcher's constructor
// table must cover this slice exactly; an exhaustiveness test enforces it.
var Catalogue = []Identifier{
	{SubsystemPanel, ActionGetLoginLink},
	{SubsystemPanel, ActionGetSubscription},
	{SubsystemPanel, ActionCreateMailbox},
	{SubsystemDNS, ActionRestartService},
	{SubsystemDNS, ActionRemoveZone},
	{SubsystemDNS, ActionGetZoneMaster},
}

// Usage describes the argument shape of each identifier for help output.
var Usage = map[Identifier]string{
	{SubsystemPanel, ActionGetLoginLink}:    "<subscription-id> <username>",
	{SubsystemPanel, ActionGetSubscription}: "<subscription-id>",
	{SubsystemPanel, ActionCreateMailbox}:   "<domain> <localpart>",
	{SubsystemDNS, ActionRestartService}:    "",
	{SubsystemDNS, ActionRemoveZone}:        "<domain>",
	{SubsystemDNS, ActionGetZoneMaster}:     "<domain>",
}

// Command errors.
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
)

// subsystemAliases maps accepted wire spellings to canonical subsystems.
// PLESK is the historical name for the hosting-panel subsystem.
var subsystemAliases = map[string]Subsystem{
	"PANEL": SubsystemPanel,
	"PLESK": SubsystemPanel,
	"DNS":   SubsystemDNS,
}

// Request is an authorized command identifier plus its raw positional
// arguments. Args stay untyped strings until the operation constructor
// validates them.
type Request struct {
	ID   Identifier
	Args []string
}

// Parse splits a token's command string into an identifier and arguments.
// The first field must be a dot-qualified "SUBSYSTEM.ACTION"; remaining
// space-separated fields become positional arguments.
func Parse(raw string) (Request, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Request{}, ErrEmptyCommand
	}

	id, err := parseIdentifier(fields[0])
	if err != nil {
		return Request{}, err
	}

	return Request{ID: id, Args: fields[1:]}, nil
}

// parseIdentifier resolves a "SUBSYSTEM.ACTION" string against the catalogue.
func parseIdentifier(s string) (Identifier, error) {
	sub, action, ok := strings.Cut(s, ".")
	if !ok {
		return Identifier{}, fmt.Errorf("%w: %q is not SUBSYSTEM.ACTION", ErrUnknownCommand, s)
	}

	subsystem, ok := subsystemAliases[strings.ToUpper(sub)]
	if !ok {
		return Identifier{}, fmt.Errorf("%w: unknown subsystem %q", ErrUnknownCommand, sub)
	}

	id := Identifier{Subsystem: subsystem, Action: Action(strings.ToUpper(action))}
	for _, known := range Catalogue {
		if known == id {
			return id, nil
		}
	}
	return Identifier{}, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
}
