// Package bytecode defines the TMBASIC instruction set and the serialized
// program format shared by the compiler and the VM.
//
// The machine has a value stack (decimals) and an object stack (heap
// objects), plus registers A and B for values and X, Y and Z for objects.
// Most data instructions work on registers; stack traffic is explicit.
//
// # Components
//
//   - Opcodes: one-byte instructions grouped into ranges by category, with
//     inline little-endian operands described by OperandKind.
//
//   - Assembler: accumulates one procedure body, with labels for forward
//     jumps that are patched by Finish.
//
//   - Program: procedure bodies, initial global values and objects, and the
//     startup procedure index. Serialize and Deserialize use a pinned
//     tagged-section format.
//
//   - System calls: host routines addressed by SystemCall with a fixed
//     stack signature, and the numeric error codes raised at run time.
package bytecode
