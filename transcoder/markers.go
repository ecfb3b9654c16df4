package transcoder

import (
	"reflect"

	"github.com/wippyai/savefile/schema"
)

// Removed stands in for a field that no longer exists in memory but is
// still present in files written at the versions in its range. Its wire
// shape is T's. Reading discards the value; writing it inside its range
// is a programming error.
type Removed[T any] struct{}

// RemovedType returns the type the field had while it existed.
func (Removed[T]) RemovedType() reflect.Type {
	return reflect.TypeFor[T]()
}

type removedMarker interface {
	RemovedType() reflect.Type
}

var removedMarkerType = reflect.TypeFor[removedMarker]()

func removedType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || t.NumField() != 0 || !t.Implements(removedMarkerType) {
		return nil, false
	}
	return reflect.Zero(t).Interface().(removedMarker).RemovedType(), true
}

// Union turns the struct embedding it into a tagged union. Every other
// exported field must be a pointer; exactly one of them is set.
//
//	type Shape struct {
//		transcoder.Union `savefile:",repr=u8"`
//		Circle *Circle
//		Empty  *struct{}
//		Label  *string `savefile:"label,disc=7"`
//	}
type Union struct{}

var unionType = reflect.TypeFor[Union]()

func isUnion(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type == unionType {
			return true
		}
	}
	return false
}

// LegacyField declares that Field was stored as the type of As for file
// versions in Versions. Convert maps the old value to the field's type;
// when nil the value is converted with reflection.
type LegacyField struct {
	As       any
	Convert  func(old any) (any, error)
	Field    string
	Versions schema.VersionRange
}

// VersionsAs is implemented by structs with fields whose type changed
// between versions.
type VersionsAs interface {
	SavefileVersionsAs() []LegacyField
}

var versionsAsType = reflect.TypeFor[VersionsAs]()

func legacyFields(t reflect.Type) []LegacyField {
	if !t.Implements(versionsAsType) {
		return nil
	}
	return reflect.Zero(t).Interface().(VersionsAs).SavefileVersionsAs()
}
