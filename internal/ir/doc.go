// Package ir provides the generic value tree that typed world data is
// encoded into before it crosses the client boundary.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere (CP-5) - integers are IRInt or IRUint
//   - Objects remember insertion order; canonical output sorts keys
//   - null is a first-class value (unset primitives encode to it)
//   - Digests use RFC 8785 canonical JSON with domain separation
package ir
