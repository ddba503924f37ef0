/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides the request admission limiters that protect
// the endpoints calling paid external providers.
//
// Two algorithms are available:
//   - SlidingWindowLimiter keeps a per-key log of admitted request times and
//     enforces the quota over a continuously sliding window. It backs the
//     per-endpoint quotas.
//   - LeakyBucketLimiter (GCRA) smooths the aggregate request stream and
//     backs the service-wide front door.
//
// Limiters are consumed through the Limiter interface by the HTTP rate
// limiting middleware. Every limiter instance owns isolated state.
package ratelimit
