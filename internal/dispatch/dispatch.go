// ABOUTME: Maps authorized command identifiers to constructed Operations
// ABOUTME: Fixed constructor table; argument validation fails closed before any subprocess

package dispatch

import (
	"errors"
	"fmt"

	"github.com/2389/opsgate/internal/command"
	"github.com/2389/opsgate/internal/ops"
)

// Dispatch errors.
var (
	// ErrInvalidArgs means the identifier was known but its arguments did
	// not convert into the operation's value types.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// constructor builds one operation from validated arguments.
type constructor func(env *ops.Env, args []string) (ops.Operation, error)

// table is the exhaustive mapping from catalogue identifier to constructor.
// Every command.Catalogue entry must appear here; a test enforces it.
var table = map[command.Identifier]constructor{
	{Subsystem: command.SubsystemPanel, Action: command.ActionGetLoginLink}:    newGetLoginLink,
	{Subsystem: command.SubsystemPanel, Action: command.ActionGetSubscription}: newGetSubscription,
	{Subsystem: command.SubsystemPanel, Action: command.ActionCreateMailbox}:   newCreateMailbox,
	{Subsystem: command.SubsystemDNS, Action: command.ActionRestartService}:    newRestartService,
	{Subsystem: command.SubsystemDNS, Action: command.ActionRemoveZone}:        newRemoveZone,
	{Subsystem: command.SubsystemDNS, Action: command.ActionGetZoneMaster}:     newGetZoneMaster,
}

// Dispatcher resolves requests against the constructor table.
type Dispatcher struct {
	env *ops.Env
}

// New creates a Dispatcher over the given operation environment.
func New(env *ops.Env) *Dispatcher {
	return &Dispatcher{env: env}
}

// Dispatch builds the operation for an authorized request. An identifier
// outside the catalogue is an unknown-command failure; argument conversion
// failures surface as ErrInvalidArgs. Nothing is executed here.
func (d *Dispatcher) Dispatch(req command.Request) (ops.Operation, error) {
	build, ok := table[req.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", command.ErrUnknownCommand, req.ID)
	}
	return build(d.env, req.Args)
}

// Supports reports whether the identifier has a constructor. Exposed for the
// exhaustiveness check against the catalogue.
func Supports(id command.Identifier) bool {
	_, ok := table[id]
	return ok
}

// argCount rejects requests whose arity does not match the operation.
func argCount(args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: got %d arguments, want %d", ErrInvalidArgs, len(args), want)
	}
	return nil
}

func newGetLoginLink(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 2); err != nil {
		return nil, err
	}
	id, err := ops.ParseSubscriptionID(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	user, err := ops.ParseUnixName(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return ops.NewGetLoginLink(env, id, user), nil
}

func newGetSubscription(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	id, err := ops.ParseSubscriptionID(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return ops.NewGetSubscription(env, id), nil
}

func newCreateMailbox(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 2); err != nil {
		return nil, err
	}
	domain, err := ops.ParseDomainName(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	local, err := ops.ParseMailLocalPart(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return ops.NewCreateMailbox(env, domain, local), nil
}

func newRestartService(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 0); err != nil {
		return nil, err
	}
	return ops.NewRestartService(env), nil
}

func newRemoveZone(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	domain, err := ops.ParseDomainName(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return ops.NewRemoveZone(env, domain), nil
}

func newGetZoneMaster(env *ops.Env, args []string) (ops.Operation, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	domain, err := ops.ParseDomainName(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return ops.NewGetZoneMaster(env, domain), nil
}
