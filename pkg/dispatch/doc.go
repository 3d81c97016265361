// Package dispatch delivers approved decisions over customer channels.
//
// Each channel is a Sender. The built-in senders (email, sms, whatsapp, web,
// push) hand an Envelope to a Transport; the default LogTransport only logs,
// which keeps every channel a simulation until a real provider transport is
// plugged in.
//
// A Dispatcher sends to all requested channels concurrently, each under its
// own timeout. One channel failing never affects the others.
package dispatch
