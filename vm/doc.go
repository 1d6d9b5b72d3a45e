// Package vm executes compiled TMBASIC programs.
//
// The interpreter keeps two fixed-size stacks: values (numbers, booleans,
// dates, date-times and time spans, all held as decimals) and objects
// (strings, collections, records, optionals and time zones). Every opcode
// has a fixed effect on the two stacks. Binary operations go through the
// value registers A and B and the object registers X, Y and Z.
//
// Objects are immutable. Collection updates build a new object that shares
// structure with the old one, so two variables holding the same list never
// observe each other's changes.
//
// Run executes a bounded number of instructions and may be called again to
// continue, which lets a host interleave the program with other work.
package vm
