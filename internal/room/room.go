// Package room declares the chat-room capability the engine renders into.
// The engine never opens connections itself; a transport (the websocket
// server, or a fake in tests) implements Channel.
package room

// SendOpts modifies an HTML push.
type SendOpts struct {
	// Name keys the push on the client so a later push with the same name
	// replaces the earlier render instead of stacking a new one.
	Name string
}

// Channel is the capability surface of one chat network: send text to a
// room, push HTML to specific users, and enumerate room members. User ids
// are lowercase handles as produced by engine.ToID.
type Channel interface {
	SendText(roomID, text string)
	SendHTML(targets []string, html string, opts SendOpts)
	Members(roomID string) []string
}
