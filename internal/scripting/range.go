// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"errors"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

const rangeTypeName = "range"

// ErrZeroStep is returned for range(b, e, 0).
var ErrZeroStep = errors.New("range step cannot be zero")

// Range is a lazy, finite integer sequence [Begin, End) advancing by Step.
// It holds no iteration state, so it can be iterated any number of times.
type Range struct {
	Begin, End, Step int
}

// NewRange validates and builds a Range.
func NewRange(begin, end, step int) (Range, error) {
	if step == 0 {
		return Range{}, ErrZeroStep
	}
	return Range{Begin: begin, End: end, Step: step}, nil
}

// Len returns the number of values in the sequence, capped at math.MaxInt.
func (r Range) Len() int {
	span, step, ok := r.span(r.Begin)
	if !ok {
		return 0
	}
	n := (span-1)/step + 1
	if n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// span returns the unsigned distance from v to End and the step magnitude.
// ok is false when v is not before End in the direction of Step. Unsigned
// arithmetic keeps both exact across the whole int range.
func (r Range) span(v int) (span, step uint, ok bool) {
	switch {
	case r.Step > 0 && v < r.End:
		return uint(r.End) - uint(v), uint(r.Step), true
	case r.Step < 0 && v > r.End:
		return uint(v) - uint(r.End), -uint(r.Step), true
	default:
		return 0, 0, false
	}
}

// At returns the i-th value (0-based).
func (r Range) At(i int) (int, bool) {
	if i < 0 || i >= r.Len() {
		return 0, false
	}
	return r.Begin + i*r.Step, true
}

// Next returns the value after v, or the first value when first is true.
func (r Range) Next(v int, first bool) (int, bool) {
	if first {
		_, _, ok := r.span(r.Begin)
		return r.Begin, ok
	}
	span, step, ok := r.span(v)
	if !ok || step >= span {
		return 0, false
	}
	return v + r.Step, true
}

func (r Range) String() string {
	if r.Step == 1 {
		return fmt.Sprintf("range(%d, %d)", r.Begin, r.End)
	}
	return fmt.Sprintf("range(%d, %d, %d)", r.Begin, r.End, r.Step)
}

// luaRange implements range(end), range(begin, end) and range(begin, end, step).
func luaRange(L *lua.LState) int {
	var begin, end, step int
	switch L.GetTop() {
	case 1:
		begin, end, step = 0, L.CheckInt(1), 1
	case 2:
		begin, end, step = L.CheckInt(1), L.CheckInt(2), 1
	case 3:
		begin, end, step = L.CheckInt(1), L.CheckInt(2), L.CheckInt(3)
	default:
		L.RaiseError("range expects 1 to 3 arguments, got %d", L.GetTop())
		return 0
	}

	rng, err := NewRange(begin, end, step)
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}

	ud := L.NewUserData()
	ud.Value = rng
	L.SetMetatable(ud, L.GetTypeMetatable(rangeTypeName))
	L.Push(ud)
	return 1
}

func registerRangeType(L *lua.LState) {
	methods := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"totable": rangeToTable,
		"each":    rangeEach,
		"len":     rangeLen,
	})

	mt := L.NewTypeMetatable(rangeTypeName)
	// r[i] is 1-based like Lua sequences; string keys resolve methods.
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		rng := checkRange(L)
		switch key := L.Get(2).(type) {
		case lua.LNumber:
			if v, ok := rng.At(int(key) - 1); ok {
				L.Push(lua.LNumber(v))
				return 1
			}
			L.Push(lua.LNil)
		case lua.LString:
			L.Push(methods.RawGetString(string(key)))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))
	L.SetField(mt, "__len", L.NewFunction(rangeLen))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkRange(L).String()))
		return 1
	}))
	// Stateless iterator: for v in r do ... end calls r(nil, previous).
	L.SetField(mt, "__call", L.NewFunction(func(L *lua.LState) int {
		rng := checkRange(L)
		prev := L.Get(3)
		var (
			next int
			ok   bool
		)
		if n, isNum := prev.(lua.LNumber); isNum {
			next, ok = rng.Next(int(n), false)
		} else {
			next, ok = rng.Next(0, true)
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(next))
		return 1
	}))
}

func checkRange(L *lua.LState) Range {
	ud := L.CheckUserData(1)
	rng, ok := ud.Value.(Range)
	if !ok {
		L.ArgError(1, "range expected")
	}
	return rng
}

func rangeLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkRange(L).Len()))
	return 1
}

func rangeToTable(L *lua.LState) int {
	rng := checkRange(L)
	t := L.CreateTable(rng.Len(), 0)
	for i := 0; i < rng.Len(); i++ {
		v, _ := rng.At(i)
		t.RawSetInt(i+1, lua.LNumber(v))
	}
	L.Push(t)
	return 1
}

func rangeEach(L *lua.LState) int {
	rng := checkRange(L)
	fn := L.CheckFunction(2)
	for i := 0; i < rng.Len(); i++ {
		v, _ := rng.At(i)
		L.Push(fn)
		L.Push(lua.LNumber(v))
		L.Call(1, 0)
	}
	return 0
}
