// Package cache provides the storefront's caching layer: a distributed cache
// facade over Redis with an in-memory substitute, a process-local companion cache
// with statistics, and a periodic warmup service.
//
// # Distributed facade
//
// [Distributed] is what request handlers talk to. Every operation is best
// effort and never returns a backend error:
//
//	d, closeCache, err := cache.Open(ctx, settings, log)
//	...
//	d.Set(ctx, "user:42", user, time.Minute)
//	user, ok := cache.Get[User](ctx, d, "user:42")
//
// A Redis outage, a timeout, an open circuit breaker or a payload that cannot be
// decoded all look like a miss to the caller and are logged with the key as
// metadata. Callers must always be ready to fall through to the source of truth.
//
// Keys are namespaced as "{prefix}:distributed:{key}" by [Namespacer]. Separator
// characters in a logical key are not escaped, and glob characters in a logical
// key are significant to pattern operations.
//
// # Backends
//
// [Open] builds a [Connector] when EnableDistributedCache is set and a connection
// string is configured; otherwise it falls back to a process-local store with the
// same read and write semantics. The fallback cannot enumerate keys, so
// [Distributed.RemoveByPattern], [Distributed.Clear], [Distributed.Keys] and
// [Distributed.KeysCount] log a warning and return zero values, and
// [Distributed.IsConnected] is always false.
//
// The [Connector] is created once per process and shared by every facade. It
// owns the go-redis client and a circuit breaker that fails calls fast after
// repeated errors, so a dead Redis costs a log line instead of a timeout per
// request.
//
// # GetOrSet
//
// [GetOrSet] is a cache-aside helper. Concurrent misses on the same key each call
// the factory; build the facade with [WithSingleFlight] to coalesce them.
//
// # Serialization
//
// Payloads are JSON by default. Set Codec to "msgpack" (or pass [WithCodec]) to
// store msgpack instead. Counters written by [Distributed.Increment] are stored as
// decimal strings, which read back as integers through the JSON codec only, so
// Increment is refused under any other codec.
//
// # Local cache and warmup
//
// [Local] keeps live Go values in process memory and tracks hit, miss and request
// counters for the admin statistics endpoints. [Warmer] refreshes registered keys
// in both caches on an interval.
package cache
