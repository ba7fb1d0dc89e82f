package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SubCommand is a field type that only accepts the literal word in its `cmd`
// tag. It is used to split a command into overloads such as `/region list`
// and `/region info <name>`.
type SubCommand struct{}

// Varargs is a field type that consumes every remaining argument, joined by
// spaces. It must be the last field of a Runnable.
type Varargs string

// Optional wraps a field type so that the argument may be left out.
type Optional[T any] struct {
	val T
	set bool
}

// Load returns the value of the argument and whether it was passed.
func (o Optional[T]) Load() (T, bool) {
	return o.val, o.set
}

// LoadOr returns the value of the argument, or or if it was not passed.
func (o Optional[T]) LoadOr(or T) T {
	if o.set {
		return o.val
	}
	return or
}

func (o Optional[T]) with(val any) any {
	return Optional[T]{val: val.(T), set: true}
}

func (Optional[T]) optType() reflect.Type {
	return reflect.TypeFor[T]()
}

type optionalT interface {
	with(val any) any
	optType() reflect.Type
}

var (
	subCommandType = reflect.TypeFor[SubCommand]()
	varargsType    = reflect.TypeFor[Varargs]()
	optionalIface  = reflect.TypeFor[optionalT]()
)

var (
	errTooFewArgs  = errors.New("not enough arguments")
	errTooManyArgs = errors.New("too many arguments")
)

type field struct {
	index    int
	name     string
	typ      reflect.Type
	optional bool
}

func (f field) usage() string {
	switch {
	case f.typ == subCommandType:
		return f.name
	case f.optional:
		return fmt.Sprintf("[%s: %s]", f.name, typeName(f.typ))
	}
	return fmt.Sprintf("<%s: %s>", f.name, typeName(f.typ))
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Bool:
		return "bool"
	}
	if t == varargsType {
		return "text"
	}
	return "string"
}

// fields returns the parameters of a Runnable type in declaration order.
// Unexported fields are skipped.
func fields(t reflect.Type) []field {
	out := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Tag.Get("cmd")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		f := field{index: i, name: name, typ: sf.Type}
		if sf.Type.Implements(optionalIface) {
			f.optional = true
			f.typ = reflect.Zero(sf.Type).Interface().(optionalT).optType()
		}
		out = append(out, f)
	}
	return out
}

func verifyFields(t reflect.Type) error {
	fs := fields(t)
	for i, f := range fs {
		if f.typ == varargsType && i != len(fs)-1 {
			return fmt.Errorf("field %s: Varargs must be the last field", f.name)
		}
		if f.typ == subCommandType {
			if f.optional {
				return fmt.Errorf("field %s: SubCommand cannot be optional", f.name)
			}
			continue
		}
		if f.typ == varargsType {
			continue
		}
		switch f.typ.Kind() {
		case reflect.String, reflect.Bool, reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return fmt.Errorf("field %s: unsupported type %v", f.name, f.typ)
		}
	}
	return nil
}

// parseArgs fills the fields of v with args. It returns the amount of
// arguments that were accepted before an error occurred.
func parseArgs(v reflect.Value, args []string) (int, error) {
	pos := 0
	for _, f := range fields(v.Type()) {
		if pos >= len(args) {
			if f.optional {
				continue
			}
			return pos, fmt.Errorf("%w: missing %s", errTooFewArgs, f.usage())
		}
		var val reflect.Value
		switch f.typ {
		case subCommandType:
			if !strings.EqualFold(args[pos], f.name) {
				return pos, fmt.Errorf("unexpected argument %q, expected %s", args[pos], f.name)
			}
			pos++
			continue
		case varargsType:
			val = reflect.ValueOf(Varargs(strings.Join(args[pos:], " ")))
			pos = len(args)
		default:
			parsed, err := parseValue(f.typ, args[pos])
			if err != nil {
				return pos, fmt.Errorf("invalid value %q for %s: %w", args[pos], f.name, err)
			}
			val = parsed
			pos++
		}
		dst := v.Field(f.index)
		if f.optional {
			dst.Set(reflect.ValueOf(dst.Interface().(optionalT).with(val.Interface())))
			continue
		}
		dst.Set(val)
	}
	if pos < len(args) {
		return pos, fmt.Errorf("%w: %q", errTooManyArgs, strings.Join(args[pos:], " "))
	}
	return pos, nil
}

func parseValue(t reflect.Type, arg string) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(arg)
	case reflect.Bool:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(arg, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(arg, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(arg, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetFloat(n)
	}
	return v, nil
}
