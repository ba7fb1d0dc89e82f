package proxy

import "fmt"

// ContentType is the type of a single value slot of an Action.
type ContentType uint8

const (
	String ContentType = iota
	Bool
	Byte
	Short
	Int
	Long
	Float
	Double
	UUID
	Bytes
	Map
)

var contentNames = [...]string{
	String: "String",
	Bool:   "Bool",
	Byte:   "Byte",
	Short:  "Short",
	Int:    "Int",
	Long:   "Long",
	Float:  "Float",
	Double: "Double",
	UUID:   "UUID",
	Bytes:  "Bytes",
	Map:    "Map",
}

// String returns the name of the content type.
func (t ContentType) String() string {
	if int(t) < len(contentNames) {
		return contentNames[t]
	}
	return fmt.Sprintf("ContentType(%d)", uint8(t))
}

// Valid reports if t is one of the known content types.
func (t ContentType) Valid() bool {
	return int(t) < len(contentNames)
}
