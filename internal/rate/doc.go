// Package rate provides Redis-backed fixed-window counters used to throttle
// failed logins and password-reset requests.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - {prefix}:rl:login:     login per-identifier
//   - {prefix}:rl:login-ip:  login per-IP
//   - {prefix}:rl:reset:     reset request per-identifier
package rate
