// Package bridge translates terminal websocket events into session registry
// and connector operations.
package bridge

import "encoding/json"

// Client to server events.
const (
	EventLogin  = "ssh_login"
	EventResume = "ssh_resume"
	EventInput  = "input"
	EventLogout = "ssh_logout"
)

// Server to client events.
const (
	EventLoginStatus = "login_status"
	EventResponse    = "response"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SessionClosedNotice is sent on resume when the session's shell is gone.
const SessionClosedNotice = "\r\nSession closed by server.\r\n"

// SessionInvalidMessage is the login_status message for unknown tokens.
const SessionInvalidMessage = "Session expired or invalid"

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResumeRequest struct {
	Token string `json:"token"`
}

type InputRequest struct {
	Token string `json:"token"`
	Data  string `json:"data"`
}

type LogoutRequest struct {
	Token string `json:"token"`
}

// LoginStatus reports the outcome of a login or resume.
type LoginStatus struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// Response carries shell output. Token names the session it came from so
// a browser holding several sessions on one socket can route it.
type Response struct {
	Data  string `json:"data"`
	Token string `json:"token,omitempty"`
}
