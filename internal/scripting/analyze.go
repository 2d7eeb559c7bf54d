// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"fmt"
	"reflect"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

type (
	// Description is the structured report printed by analyze().
	Description struct {
		Type      string            `yaml:"type"`
		Value     string            `yaml:"value,omitempty"`
		GoType    string            `yaml:"go_type,omitempty"`
		Length    *int              `yaml:"length,omitempty"`
		Fields    map[string]string `yaml:"fields,omitempty"`
		Methods   []string          `yaml:"methods,omitempty"`
		Metatable []string          `yaml:"metatable,omitempty"`
		Function  *FunctionInfo     `yaml:"function,omitempty"`
	}

	// FunctionInfo describes a Lua or builtin function.
	FunctionInfo struct {
		Builtin    bool   `yaml:"builtin"`
		Parameters int    `yaml:"parameters,omitempty"`
		Variadic   bool   `yaml:"variadic,omitempty"`
		Source     string `yaml:"source,omitempty"`
		Line       int    `yaml:"line,omitempty"`
	}
)

// Describe builds the analyze() report for v.
func (r *Runner) Describe(v lua.LValue) Description {
	d := Description{Type: v.Type().String()}

	switch val := v.(type) {
	case *lua.LTable:
		n := val.Len()
		d.Length = &n
		d.Fields = make(map[string]string)
		val.ForEach(func(k, fv lua.LValue) {
			if fv.Type() == lua.LTFunction {
				d.Methods = append(d.Methods, k.String())
				return
			}
			d.Fields[k.String()] = fv.Type().String() + ": " + r.render(fv, 1)
		})
		if len(d.Fields) == 0 {
			d.Fields = nil
		}
		d.Metatable = metatableKeys(r.L, val)

	case *lua.LUserData:
		d.GoType = fmt.Sprintf("%T", val.Value)
		d.Value = r.render(val, 0)
		d.Fields, d.Methods = reflectMembers(val.Value)
		if idx, ok := r.L.GetMetatable(val).(*lua.LTable); ok {
			if methods, ok := idx.RawGetString("__index").(*lua.LTable); ok {
				methods.ForEach(func(k, _ lua.LValue) {
					d.Methods = append(d.Methods, k.String())
				})
			}
		}
		d.Metatable = metatableKeys(r.L, val)

	case *lua.LFunction:
		info := &FunctionInfo{Builtin: val.IsG}
		if !val.IsG && val.Proto != nil {
			info.Parameters = int(val.Proto.NumParameters)
			info.Variadic = val.Proto.IsVarArg != 0
			info.Source = val.Proto.SourceName
			info.Line = val.Proto.LineDefined
		}
		d.Function = info

	case *lua.LNilType:

	default:
		d.Value = v.String()
	}

	sort.Strings(d.Methods)
	return d
}

func metatableKeys(L *lua.LState, v lua.LValue) []string {
	mt, ok := L.GetMetatable(v).(*lua.LTable)
	if !ok {
		return nil
	}
	var keys []string
	mt.ForEach(func(k, _ lua.LValue) {
		keys = append(keys, k.String())
	})
	sort.Strings(keys)
	return keys
}

// reflectMembers lists exported struct fields and methods of a Go value.
func reflectMembers(v any) (map[string]string, []string) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()

	var methods []string
	for i := 0; i < rt.NumMethod(); i++ {
		methods = append(methods, rt.Method(i).Name)
	}

	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, methods
	}

	fields := make(map[string]string)
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		fields[f.Name] = fmt.Sprintf("%s: %v", f.Type, rv.Field(i).Interface())
	}
	if len(fields) == 0 {
		fields = nil
	}
	return fields, methods
}

// luaAnalyze prints a YAML description of its argument and returns nothing.
func (r *Runner) luaAnalyze(L *lua.LState) int {
	out, err := yaml.Marshal(r.Describe(L.Get(1)))
	if err != nil {
		L.RaiseError("analyze: %s", err.Error())
		return 0
	}
	r.write(L, string(out))
	return 0
}
