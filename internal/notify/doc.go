// Package notify delivers verification and password-reset emails out of band.
//
// The Dispatcher queues messages on a buffered channel and a single worker
// hands them to a Sender. Delivery failures are logged and counted, never
// returned to the caller that enqueued the message.
package notify
