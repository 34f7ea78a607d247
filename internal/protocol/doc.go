// Package protocol owns the fixed-frame decode contract.
//
// Ownership boundary:
// - error taxonomy shared by every decode stage (errors.go)
// - window: bounds-checked byte extraction
// - schema: field descriptors, record schemas, validation
// - hooks: custom decoder registry
// - decode: the engine applying a schema to a frame
// - bind: struct tags to schema, records to structs
// - frame: SocketCAN can_frame and candump line codec
package protocol
