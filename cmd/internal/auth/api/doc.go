// Package authapi is the client for the remote authentication API.
//
// Requests are JSON POSTs carrying a fixed shared-secret header; responses are
// XML documents whose leaf elements are read by name (guid, mail,
// profile_image, session_token, item, message). Every call returns a Result,
// never an error: a failure is either a server rejection (non-2xx, with the
// server's message) or a transport failure (no usable response).
package authapi
