// Package shard derives the nested two-character directory chain that a
// content-addressed file belongs under.
//
// A file named "deadbeef.bin" sharded two deep lives at "de/ad/deadbeef.bin";
// four deep at "de/ad/be/ef/deadbeef.bin". The derivation is a pure function of
// the filename and the depth. Names shorter than two characters per level are
// reported as unclassifiable and are never placed.
//
// The named presets used by archive tools ("romroot" for two deep, "depot" for
// four deep) are resolved by ParseMode so command wiring stays declarative.
package shard
