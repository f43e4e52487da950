package check

import "github.com/ckitagawa/chocopyc"

var (
	typeObject = chocopy.ClassType_(chocopy.ClassObject)
	typeInt    = chocopy.ClassType_(chocopy.ClassInt)
	typeBool   = chocopy.ClassType_(chocopy.ClassBool)
	typeStr    = chocopy.ClassType_(chocopy.ClassStr)
	typeNone   = chocopy.ClassType_(chocopy.ClassNone)
	typeEmpty  = chocopy.ClassType_(chocopy.ClassEmpty)

	typeNoneList = chocopy.ListType_(typeNone)
)

func funcTypeEqual(a, b chocopy.FuncType) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !a.Params[i].Equal(b.Params[i]) {
			return false
		}
	}
	return a.Return.Equal(b.Return)
}

// isBasic reports whether t is one of the three value-semantic
// built-ins that can never be compared with `is`.
func isBasic(t chocopy.ValueType) bool {
	return t.Equal(typeInt) || t.Equal(typeBool) || t.Equal(typeStr)
}
