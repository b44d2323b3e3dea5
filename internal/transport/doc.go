// Package transport carries commands to devices over one of two paths.
//
// The local path opens a TCP connection to the device's last known
// address and exchanges encrypted protocol frames directly. The cloud
// path posts the command to the relay API with a bearer credential and
// reads the per-device delivery status from the response.
//
// Both paths implement the same Session interface, so the dispatcher is
// transport-agnostic: it opens a fresh session per attempt through an
// Opener and closes it when the attempt ends. Failures fold into a small
// shared taxonomy (ErrUnreachable, ErrTimeout, ErrAuth, plus the wire
// package's integrity and decode errors) that drives the dispatcher's
// retry and fallthrough decisions.
package transport
