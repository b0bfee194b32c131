// Package api defines the collaborator contracts the collider core
// consumes from, and exposes to, the surrounding network framework:
// Task, Listener, Socket, SelectorBridge, Config, the ambient Debug
// introspection surface, and the shared error sentinels used
// throughout the core packages.
package api
