package abi

import (
	"fmt"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
)

const (
	// MaxMethods is the number of distinct method numbers.
	MaxMethods = 1 << 16
	// MaxArgs is the argument limit per method. Bit 63 of a mask is the
	// return value.
	MaxArgs = 63

	returnBit = 63
)

// Definition describes an interface at one version.
type Definition struct {
	Name    string
	Methods []MethodDef
}

// MethodDef describes one method. Number is its wire identifier and equals
// its declaration index.
type MethodDef struct {
	Return  *schema.Schema
	Name    string
	Args    []schema.Field
	Number  uint16
	Mutable bool
}

// Method returns the method with the given number.
func (d *Definition) Method(n uint16) (*MethodDef, bool) {
	if int(n) >= len(d.Methods) {
		return nil, false
	}
	return &d.Methods[n], true
}

// WriteDefinition encodes d.
func WriteDefinition(s *codec.Serializer, d *Definition) error {
	if err := s.WriteString(d.Name); err != nil {
		return err
	}
	if err := s.WriteLen(len(d.Methods)); err != nil {
		return err
	}
	for i := range d.Methods {
		m := &d.Methods[i]
		if err := s.WriteString(m.Name); err != nil {
			return err
		}
		if err := s.WriteU16(m.Number); err != nil {
			return err
		}
		if err := s.WriteBool(m.Mutable); err != nil {
			return err
		}
		if err := s.WriteLen(len(m.Args)); err != nil {
			return err
		}
		for _, a := range m.Args {
			if err := s.WriteString(a.Name); err != nil {
				return err
			}
			if err := schema.Write(s, a.Schema); err != nil {
				return err
			}
		}
		if err := schema.Write(s, m.Return); err != nil {
			return err
		}
	}
	return nil
}

// ReadDefinition decodes a definition written by WriteDefinition.
func ReadDefinition(d *codec.Deserializer) (*Definition, error) {
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	if n > MaxMethods {
		return nil, errors.Protocol("definition %s has %d methods", name, n)
	}

	def := &Definition{Name: name, Methods: make([]MethodDef, 0, n)}
	for i := 0; i < n; i++ {
		var m MethodDef
		if m.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if m.Number, err = d.ReadU16(); err != nil {
			return nil, err
		}
		if int(m.Number) != i {
			return nil, errors.Protocol("method %s has number %d at index %d", m.Name, m.Number, i)
		}
		if m.Mutable, err = d.ReadBool(); err != nil {
			return nil, err
		}
		args, err := d.ReadLen()
		if err != nil {
			return nil, err
		}
		if args > MaxArgs {
			return nil, errors.Protocol("method %s has %d arguments", m.Name, args)
		}
		for j := 0; j < args; j++ {
			argName, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			s, err := schema.Read(d)
			if err != nil {
				return nil, err
			}
			m.Args = append(m.Args, schema.F(argName, s))
		}
		if m.Return, err = schema.Read(d); err != nil {
			return nil, err
		}
		def.Methods = append(def.Methods, m)
	}
	return def, nil
}

// compatibility is what a caller may do with one callee method.
type compatibility struct {
	// mask has bit i set when argument i matches, and bit 63 when the
	// return value matches.
	mask    uint64
	reason  string
	enabled bool
}

// fullMask is the mask of a method whose arguments and return all match.
func fullMask(args int) uint64 {
	return (uint64(1)<<uint(args) - 1) | uint64(1)<<returnBit
}

// compare matches the caller's view of a method against the callee's.
func compare(caller, callee *MethodDef) compatibility {
	if caller.Name != callee.Name {
		return compatibility{reason: fmt.Sprintf("method %d is %s in the callee, not %s", caller.Number, callee.Name, caller.Name)}
	}
	if caller.Mutable != callee.Mutable {
		return compatibility{reason: fmt.Sprintf("method %s differs in receiver mutability", caller.Name)}
	}
	if len(caller.Args) != len(callee.Args) {
		return compatibility{reason: fmt.Sprintf("method %s takes %d arguments in the callee, %d in the caller",
			caller.Name, len(callee.Args), len(caller.Args))}
	}

	var c compatibility
	for i := range caller.Args {
		if m := schema.Diff(callee.Args[i].Schema, caller.Args[i].Schema); m != nil {
			if c.reason == "" {
				c.reason = fmt.Sprintf("argument %s of method %s is incompatible. %s", caller.Args[i].Name, caller.Name, m)
			}
			continue
		}
		c.mask |= 1 << uint(i)
	}
	if m := schema.Diff(caller.Return, callee.Return); m != nil {
		if c.reason == "" {
			c.reason = fmt.Sprintf("return value of method %s is incompatible. %s", caller.Name, m)
		}
	} else {
		c.mask |= 1 << returnBit
	}
	c.enabled = c.mask == fullMask(len(caller.Args))
	return c
}
