// Package queue binds the score event pipeline to the message transport.
//
// A Watermill router consumes the score topic from NATS JetStream, decodes
// each payload and hands it to the intake pipeline. Any handler error is
// final: the message is published to the dead-letter topic and acknowledged
// on the main topic, so nothing is redelivered.
package queue
