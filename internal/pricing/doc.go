// Package pricing holds the three European option pricing engines: the
// closed-form Black-Scholes formula, a Cox-Ross-Rubinstein binomial tree and a
// terminal-only geometric Brownian motion Monte Carlo.
//
// All functions are pure. They validate the contract, hold no state and never
// log. Results are checked for finiteness; inputs are safe while
// σ·√(T·steps) stays below roughly 700 and |r|·T below roughly 700, beyond that
// a NumericOverflow error is returned. The tree also needs e^(r·dt) inside
// (d, u), i.e. |r|·√dt < σ roughly; coarse lattices with low volatility and
// high rates are rejected with InvalidArgument.
package pricing
