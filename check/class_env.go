package check

import "github.com/ckitagawa/chocopyc"

// Item is a class member entry: either a plain attribute or a method
// signature. Both FuncDef and VarDef declarations in a class body
// resolve to one of these before codegen ever sees the class.
type Item interface {
	item()
}

type AttrItem struct{ Type chocopy.ValueType }
type FuncItem struct{ Type chocopy.FuncType }

func (AttrItem) item() {}
func (FuncItem) item() {}

type ClassInfo struct {
	Super string
	Items map[string]Item
}

// ClassEnv is the global class table: name to inherited+declared
// members, built once in Pass A and read-only afterward.
type ClassEnv struct {
	classes map[string]*ClassInfo
}

func NewClassEnv() *ClassEnv {
	e := &ClassEnv{classes: map[string]*ClassInfo{}}
	e.addBasicType(chocopy.ClassObject)
	return e
}

// addBasicType seeds one of the five special classes with a no-arg
// __init__ returning <None>. object's __init__ takes "object" as
// self; the others are re-seeded with their own name once object
// exists, matching the reference compiler's add_basic_type calls.
func (e *ClassEnv) addBasicType(name string) {
	e.classes[name] = &ClassInfo{
		Super: chocopy.ClassObject,
		Items: map[string]Item{
			"__init__": FuncItem{Type: chocopy.FuncType{
				Params: []chocopy.ValueType{chocopy.ClassType_(name)},
				Return: typeNone,
			}},
		},
	}
}

// CompleteBasicTypes adds str/int/bool/<None>/<Empty> after the
// user's classes have been processed, so a class named "str" by
// mistake is caught as a redefinition rather than silently shadowing
// the real one (Pass A builds user classes before this runs).
func (e *ClassEnv) CompleteBasicTypes() {
	for _, name := range []string{chocopy.ClassStr, chocopy.ClassInt, chocopy.ClassBool, chocopy.ClassNone, chocopy.ClassEmpty} {
		e.addBasicType(name)
	}
}

func (e *ClassEnv) Get(name string) (*ClassInfo, bool) {
	ci, ok := e.classes[name]
	return ci, ok
}

func (e *ClassEnv) Contains(name string) bool {
	_, ok := e.classes[name]
	return ok
}

// AddClass validates the super-class reference, copies its inherited
// items (rewriting the self parameter of each inherited method to the
// new class), then folds in the class's own declarations, flagging
// duplicate names, attribute redefinition, method override mismatches,
// and a malformed self parameter along the way.
func (e *ClassEnv) AddClass(cd *chocopy.ClassDef, idSet map[string]bool) []chocopy.CompilerError {
	var errs []chocopy.CompilerError
	className := cd.Name

	super, ok := e.classes[cd.Super]
	if !ok {
		var msg string
		switch cd.Super {
		case chocopy.ClassInt, chocopy.ClassStr, chocopy.ClassBool:
			msg = errorSuperSpecial(cd.Super)
		default:
			if idSet[cd.Super] {
				msg = errorSuperNotClass(cd.Super)
			} else {
				msg = errorSuperUndef(cd.Super)
			}
		}
		errs = append(errs, chocopy.CompilerError{Loc: cd.SuperLoc, Message: msg})
		super = e.classes[chocopy.ClassObject]
	}

	items := map[string]Item{}
	for name, it := range super.Items {
		if fi, ok := it.(FuncItem); ok {
			ft := fi.Type
			params := append([]chocopy.ValueType(nil), ft.Params...)
			if len(params) > 0 {
				params[0] = chocopy.ClassType_(className)
			}
			items[name] = FuncItem{Type: chocopy.FuncType{Params: params, Return: ft.Return}}
			continue
		}
		items[name] = it
	}

	seen := map[string]bool{}
	for _, decl := range cd.Decls {
		var name string
		var loc chocopy.Location
		switch d := decl.(type) {
		case *chocopy.FuncDef:
			name, loc = d.Name, d.NameLoc
		case *chocopy.VarDef:
			name, loc = d.Name, d.NameLoc
		}
		if seen[name] {
			errs = append(errs, chocopy.CompilerError{Loc: loc, Message: errorDup(name)})
			continue
		}
		seen[name] = true

		switch d := decl.(type) {
		case *chocopy.FuncDef:
			params := make([]chocopy.ValueType, len(d.Params))
			for i, p := range d.Params {
				params[i] = valueTypeFromAnnotation(p.Type)
			}
			ret := typeNone
			if d.Return != nil {
				ret = valueTypeFromAnnotation(d.Return)
			}
			if len(params) == 0 || !params[0].Equal(chocopy.ClassType_(className)) {
				errs = append(errs, chocopy.CompilerError{Loc: d.NameLoc, Message: errorMethodSelf(name)})
			}
			newType := chocopy.FuncType{Params: params, Return: ret}
			if old, exists := items[name]; exists {
				if oldFunc, ok := old.(FuncItem); ok {
					adjusted := oldFunc.Type
					if len(adjusted.Params) > 0 {
						adjusted.Params = append([]chocopy.ValueType(nil), adjusted.Params...)
						adjusted.Params[0] = chocopy.ClassType_(className)
					}
					if !funcTypeEqual(adjusted, newType) {
						errs = append(errs, chocopy.CompilerError{Loc: d.NameLoc, Message: errorMethodOverride(name)})
					}
				} else {
					errs = append(errs, chocopy.CompilerError{Loc: d.NameLoc, Message: errorAttributeRedefine(name)})
				}
			}
			items[name] = FuncItem{Type: newType}
		case *chocopy.VarDef:
			if _, exists := items[name]; exists {
				errs = append(errs, chocopy.CompilerError{Loc: d.NameLoc, Message: errorAttributeRedefine(name)})
			}
			items[name] = AttrItem{Type: valueTypeFromAnnotation(d.Type)}
		}
	}

	e.classes[className] = &ClassInfo{Super: cd.Super, Items: items}
	return errs
}

func valueTypeFromAnnotation(t chocopy.TypeAnnotation) chocopy.ValueType {
	switch a := t.(type) {
	case *chocopy.ClassType:
		return chocopy.ClassType_(a.Name)
	case *chocopy.ListType:
		return chocopy.ListType_(valueTypeFromAnnotation(a.Elem))
	default:
		return typeObject
	}
}

// IsCompatible reports whether a value of type sub may be used where
// super is expected, following the ChocoPy subtyping rules: identity,
// object accepts anything, <None>/<Empty> have special list rules, and
// otherwise sub's class chain must reach super.
func (e *ClassEnv) IsCompatible(sub, super chocopy.ValueType) bool {
	if sub.Equal(super) {
		return true
	}
	if super.Equal(typeObject) {
		return true
	}
	if sub.Equal(typeNone) {
		if !super.IsList() {
			return super.ClassName != chocopy.ClassInt && super.ClassName != chocopy.ClassStr && super.ClassName != chocopy.ClassBool
		}
		return true
	}
	if sub.Equal(typeEmpty) {
		return super.IsList()
	}
	if sub.Equal(typeNoneList) {
		if super.IsList() {
			return e.IsCompatible(typeNone, *super.Elem)
		}
		return false
	}
	if super.Equal(typeNone) || super.Equal(typeEmpty) {
		return false
	}

	if sub.IsList() || super.IsList() {
		return false
	}

	subName := sub.ClassName
	for {
		if subName == super.ClassName {
			return true
		}
		if subName == chocopy.ClassObject {
			return false
		}
		ci, ok := e.classes[subName]
		if !ok {
			return false
		}
		subName = ci.Super
	}
}

// Join computes the least common supertype of a and b, used for list
// literal element types and ternary-expression branches.
func (e *ClassEnv) Join(a, b chocopy.ValueType) chocopy.ValueType {
	if e.IsCompatible(a, b) {
		return b
	}
	if e.IsCompatible(b, a) {
		return a
	}
	if a.IsList() || b.IsList() {
		return typeObject
	}
	if a.ClassName == chocopy.ClassNone || a.ClassName == chocopy.ClassEmpty ||
		b.ClassName == chocopy.ClassNone || b.ClassName == chocopy.ClassEmpty {
		return typeObject
	}

	chain := func(name string) []string {
		var v []string
		for {
			v = append(v, name)
			if name == chocopy.ClassObject {
				return v
			}
			ci, ok := e.classes[name]
			if !ok {
				return v
			}
			name = ci.Super
		}
	}
	aChain := chain(a.ClassName)
	bChain := chain(b.ClassName)

	ai, bi := len(aChain)-1, len(bChain)-1
	common := chocopy.ClassObject
	for ai >= 0 && bi >= 0 && aChain[ai] == bChain[bi] {
		common = aChain[ai]
		ai--
		bi--
	}
	return chocopy.ClassType_(common)
}
