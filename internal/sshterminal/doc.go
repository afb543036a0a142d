// Package sshterminal runs the browser terminal's remote shells: SSH
// connections to the local host, a registry of live sessions keyed by
// token, a per-session output pump and a grace-period reaper for sessions
// whose browser went away.
//
// # Core Components
//
//   - [Connector]: dials 127.0.0.1:22 with password auth and starts a login
//     shell on an xterm-256color PTY ([ShellChannel]).
//   - [Registry]: token to [Session] map guarded by one mutex. Owns each
//     session's connection and channel.
//   - Output pump: one goroutine per session reading up to [ChunkSize] bytes
//     at a time and delivering decoded text to the attached [Subscriber].
//     Output read while nobody is attached is dropped.
//   - Reaper: a cancellable timer armed by [Registry.Detach] and disarmed by
//     [Registry.Attach]. After [DefaultGracePeriod] it destroys the session
//     if it is still unattached.
//   - [LoginLimiter] and [MessageLimiter]: per-client login throttling and
//     inbound message rate limiting.
//
// # Session Lifecycle
//
//  1. Login: the connector dials and authenticates, then [Registry.Create]
//     stores the session attached to the requesting connection and starts
//     its pump.
//  2. Browser disconnects: [Registry.DetachSubscriber] clears the routing
//     target and arms the reaper. The remote shell keeps running.
//  3. Resume within the grace period: [Registry.Attach] routes output to the
//     new connection and cancels the reaper.
//  4. Logout, expiry or shutdown: the channel and then the connection are
//     closed and the token is forgotten.
//
// # Log Prefixes
//
// All operations log at the [terminal] prefix.
package sshterminal
