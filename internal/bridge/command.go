// Package bridge is the client side of the application RPC boundary: a
// request/response channel to the 3D application's scripting host. Command
// names follow the {area}.{action} convention and form a closed set
// validated before dispatch, never concatenated at call sites.
package bridge

// Command identifies one RPC operation on the application boundary.
type Command string

const (
	// Read-only queries issued by the scene analyzer.
	CmdSceneGetContext Command = "scene.get_context"
	CmdObjectInspect   Command = "object.inspect"
)

// knownCommands is the closed dispatch set. Registration of a client
// rejects anything outside it, so a typo fails at construction rather than
// on the wire.
var knownCommands = map[Command]struct{}{
	CmdSceneGetContext: {},
	CmdObjectInspect:   {},
}

// Valid reports whether cmd is part of the closed command set.
func (c Command) Valid() bool {
	_, ok := knownCommands[c]
	return ok
}
