package ndep

import (
	"reflect"
	"sync"

	"github.com/muir/reflectutils"
)

// typeCode maps reflect.Type to small integers so that keys stay
// cheap to compare and hash.
type typeCode int

var (
	typeCounter = 0
	lock        sync.Mutex
	typeMap     = make(map[reflect.Type]typeCode)
	reverseMap  = make(map[typeCode]reflect.Type)
)

func getTypeCode(t reflect.Type) typeCode {
	if t == nil {
		panic("nil has no type")
	}
	lock.Lock()
	defer lock.Unlock()
	if tc, found := typeMap[t]; found {
		return tc
	}
	typeCounter++
	tc := typeCode(typeCounter)
	typeMap[t] = tc
	reverseMap[tc] = t
	return tc
}

func (tc typeCode) Type() reflect.Type {
	lock.Lock()
	defer lock.Unlock()
	return reverseMap[tc]
}

func (tc typeCode) String() string {
	return reflectutils.TypeName(tc.Type())
}

// Key is the identity of a producible type.  Two keys are equal
// if and only if they name the same type (and, for keys produced
// by parameterized providers, the same parameter name).  Keys are
// comparable and can be used as map keys.
//
// The zero Key names nothing.
type Key struct {
	code      typeCode
	qualifier string
}

// KeyOf returns the Key for the type T.
//
//	settingsKey := ndep.KeyOf[Settings]()
//	readerKey := ndep.KeyOf[io.Reader]()
func KeyOf[T any]() Key {
	return KeyFor(reflect.TypeOf((*T)(nil)).Elem())
}

// KeyFor returns the Key for a reflect.Type.
func KeyFor(t reflect.Type) Key {
	return Key{code: getTypeCode(t)}
}

// IsZero is true for the zero Key
func (k Key) IsZero() bool {
	return k.code == 0
}

// Type returns the type named by the key.  It returns nil
// for the zero Key.
func (k Key) Type() reflect.Type {
	if k.code == 0 {
		return nil
	}
	return k.code.Type()
}

// Qualifier returns the parameter name that qualifies a key
// produced by a parameterized provider.  It is empty for
// ordinary keys.
func (k Key) Qualifier() string {
	return k.qualifier
}

// Qualify returns a copy of the key that is qualified by a
// parameter name.
func (k Key) Qualify(paramName string) Key {
	return Key{code: k.code, qualifier: paramName}
}

// Base strips any qualifier
func (k Key) Base() Key {
	return Key{code: k.code}
}

func (k Key) String() string {
	if k.code == 0 {
		return "<none>"
	}
	if k.qualifier != "" {
		return k.code.String() + ":" + k.qualifier
	}
	return k.code.String()
}

// duplicateTypes lists type names that refer to more than
// one type.  It helps when reading error messages where two
// different types have the same printed name.
func duplicateTypes() string {
	lock.Lock()
	defer lock.Unlock()
	names := make(map[string]struct{})
	found := make(map[string]struct{})
	var dups string
	for i := 1; i <= typeCounter; i++ {
		n := reflectutils.TypeName(reverseMap[typeCode(i)])
		if _, ok := names[n]; ok {
			if _, ok := found[n]; !ok {
				dups += " " + n
				found[n] = struct{}{}
			}
		}
		names[n] = struct{}{}
	}
	return dups
}
