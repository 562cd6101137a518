package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	typeInvoke = "invoke"
	typeResult = "result"
	typeEvent  = "event"
)

var (
	errMalformed   = errors.New("hub: malformed message")
	errNotInvoke   = errors.New("hub: not an invoke message")
	errBadArgument = errors.New("hub: missing or invalid argument")
)

// inbound is the client-to-server envelope.
type inbound struct {
	Type      string            `json:"type"`
	Method    string            `json:"method"`
	Arguments []json.RawMessage `json:"arguments"`
}

// resultMessage acknowledges a subscription change.
type resultMessage struct {
	Type   string `json:"type"`
	Result bool   `json:"result"`
}

// eventMessage carries a broadcast. ContractID is set on market events only.
type eventMessage struct {
	Type       string `json:"type"`
	Event      string `json:"event"`
	ContractID string `json:"contractId,omitempty"`
	Data       any    `json:"data"`
}

var ackPayload = mustMarshal(resultMessage{Type: typeResult, Result: true})

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// invocation is a decoded invoke message whose method has been resolved
// against a hub's closed method table.
type invocation[M comparable] struct {
	method M
	name   string
	args   []json.RawMessage
}

// decodeInvocation parses raw and resolves its method in table. ok is
// false when the method is not in the table.
func decodeInvocation[M comparable](raw []byte, table map[string]M) (inv invocation[M], ok bool, err error) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return inv, false, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if msg.Type != typeInvoke {
		return inv, false, fmt.Errorf("%w: type %q", errNotInvoke, msg.Type)
	}
	m, ok := table[msg.Method]
	inv = invocation[M]{method: m, name: msg.Method, args: msg.Arguments}
	return inv, ok, nil
}

// accountArg reads the first argument as an account id. Numeric strings
// are accepted. Zero is treated as missing.
func accountArg(args []json.RawMessage) (int64, error) {
	if len(args) == 0 {
		return 0, errBadArgument
	}
	var id int64
	if err := json.Unmarshal(args[0], &id); err != nil {
		var s string
		if json.Unmarshal(args[0], &s) != nil {
			return 0, errBadArgument
		}
		if id, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, errBadArgument
		}
	}
	if id == 0 {
		return 0, errBadArgument
	}
	return id, nil
}

// contractArg reads the first argument as a non-empty contract id.
func contractArg(args []json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "", errBadArgument
	}
	var id string
	if err := json.Unmarshal(args[0], &id); err != nil || id == "" {
		return "", errBadArgument
	}
	return id, nil
}
