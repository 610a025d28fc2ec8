// Package vm implements the coreVM execution engine.
//
// This package contains:
//   - the dynamic object heap and its pluggable GC schemes
//   - the garbage collector and the rules that trigger it
//   - the native types pool
//   - frames, processes and the instruction dispatch loop
//   - handlers for every instruction
package vm
