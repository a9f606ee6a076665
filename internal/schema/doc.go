// Package schema defines the typed world data model: primitives, the
// recursive Ty variant, models and entities, plus their lossless wire form.
//
// Ty is sealed. Encoders switch over Primitive, *Struct, *Enum and *Tuple
// and never use reflection.
package schema
