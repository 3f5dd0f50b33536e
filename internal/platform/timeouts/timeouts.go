// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// HTTPRequest caps one worker call to the billing API.
const HTTPRequest = 10 * time.Second

// NATSConnect caps the initial broker connection attempt.
const NATSConnect = 3 * time.Second

// NATSFlush caps how long a publish waits for the broker to confirm receipt.
const NATSFlush = 2 * time.Second
