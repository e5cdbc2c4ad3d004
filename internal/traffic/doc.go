// Package traffic records the frames a modem session writes and reads.
//
// A Recorder is installed as the session's traffic observer. It queues
// frames without blocking the session, decodes each one as far as the
// catalog allows and hands it to a set of sinks: the structured log, the
// SQLite journal and InfluxDB. When the queue is full, frames are dropped
// and counted rather than stalling the modem exchange.
package traffic
