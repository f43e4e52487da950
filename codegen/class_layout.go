package codegen

import (
	"github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/object"
)

const attrSlotSize = int32(8)

// MethodInfo is one vtable entry: its fixed offset from the start of
// the prototype (see object.PrototypeVtableBase) and its declared
// signature, needed to know how many arguments a method call pushes.
type MethodInfo struct {
	Name   string
	Offset int32
	Decl   *chocopy.FuncDef // the defining class's FuncDef (a superclass's for an inherited method); nil for object's built-in methods
}

// ClassLayout is the codegen-side mirror of check.ClassInfo, adding
// the concrete offsets the object model needs: where each attribute
// lives in an instance body, and where each method lives in the
// prototype's vtable.
type ClassLayout struct {
	Name          string
	Super         string
	AttrOffset    map[string]int32
	AttrOrder     []string
	AttrType      map[string]chocopy.ValueType
	Methods       map[string]MethodInfo
	MethodOrder   []string
	BodySize      int32
	PrototypeSize int32 // header (24) + 8*len(vtable methods beyond __init__)
}

// BuildClassLayouts computes every user class's layout in one pass,
// inheriting attribute/method offsets from the super-class layout so
// an overridden method keeps its parent's vtable slot and only
// genuinely new members grow the table, per the object model's
// append-only vtable rule.
func BuildClassLayouts(prog *chocopy.Program) map[string]*ClassLayout {
	defs := map[string]*chocopy.ClassDef{}
	for _, decl := range prog.Declarations {
		if cd, ok := decl.(*chocopy.ClassDef); ok {
			defs[cd.Name] = cd
		}
	}

	layouts := map[string]*ClassLayout{
		chocopy.ClassObject: {
			Name: chocopy.ClassObject, Super: "",
			AttrOffset: map[string]int32{}, AttrType: map[string]chocopy.ValueType{},
			Methods:       map[string]MethodInfo{},
			BodySize:      0,
			PrototypeSize: int32(object.PrototypeVtableBase),
		},
	}

	var build func(name string) *ClassLayout
	build = func(name string) *ClassLayout {
		if l, ok := layouts[name]; ok {
			return l
		}
		cd := defs[name]
		if cd == nil {
			return layouts[chocopy.ClassObject]
		}
		super := build(cd.Super)

		l := &ClassLayout{
			Name:          name,
			Super:         cd.Super,
			AttrOffset:    map[string]int32{},
			AttrType:      map[string]chocopy.ValueType{},
			Methods:       map[string]MethodInfo{},
			BodySize:      super.BodySize,
			PrototypeSize: super.PrototypeSize,
		}
		for k, v := range super.AttrOffset {
			l.AttrOffset[k] = v
			l.AttrType[k] = super.AttrType[k]
			l.AttrOrder = append(l.AttrOrder, k)
		}
		for k, v := range super.Methods {
			l.Methods[k] = v
			l.MethodOrder = append(l.MethodOrder, k)
		}

		for _, decl := range cd.Decls {
			switch d := decl.(type) {
			case *chocopy.VarDef:
				if _, exists := l.AttrOffset[d.Name]; !exists {
					l.AttrOffset[d.Name] = l.BodySize
					l.AttrOrder = append(l.AttrOrder, d.Name)
					l.BodySize += attrSlotSize
				}
				l.AttrType[d.Name] = valueTypeOf(d.Type)
			case *chocopy.FuncDef:
				if existing, exists := l.Methods[d.Name]; exists {
					l.Methods[d.Name] = MethodInfo{Name: d.Name, Offset: existing.Offset, Decl: d}
				} else {
					off := int32(object.PrototypeInitOffset)
					if d.Name != "__init__" {
						off = l.PrototypeSize
						l.PrototypeSize += 8
					}
					l.Methods[d.Name] = MethodInfo{Name: d.Name, Offset: off, Decl: d}
					l.MethodOrder = append(l.MethodOrder, d.Name)
				}
			}
		}
		layouts[name] = l
		return l
	}

	for name := range defs {
		build(name)
	}
	return layouts
}
