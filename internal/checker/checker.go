// Package checker validates the shapes of decoded JSON configuration values
// against a declared schema, reporting every offending attribute at once.
package checker

import (
	"fmt"
	"math"
	"sort"

	"github.com/eraatools/ucprep/internal/report"
)

// Kind identifies one entry of the fixed type-tag vocabulary used to declare
// the expected shape of a raw configuration attribute.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindListOfString
	KindListOfInt
	KindNoneOrListOfString
	KindDictStrDict
	KindDictStrListOfFloat
	KindDictStrListOfString
	KindDictStrStr
	KindTwoLevelDictStrStrListOfString
	KindTwoLevelDictStrStrStr
	// combinations of the kinds above
	KindStringOrListOfString
	KindIntOrListOfInt
)

// Schema maps attribute names to their declared kind.
type Schema map[string]Kind

// validators is resolved at compile time; an out-of-range Kind is a
// programming error, not a validation failure.
var validators = [...]func(any) bool{
	KindString:                         isString,
	KindInt:                            isInt,
	KindListOfString:                   isListOfString,
	KindListOfInt:                      isListOfInt,
	KindNoneOrListOfString:             isNoneOrListOfString,
	KindDictStrDict:                    isDictStrDict,
	KindDictStrListOfFloat:             isDictStrListOfFloat,
	KindDictStrListOfString:            isDictStrListOfString,
	KindDictStrStr:                     isDictStrStr,
	KindTwoLevelDictStrStrListOfString: isTwoLevelDictStrStrListOfString,
	KindTwoLevelDictStrStrStr:          isTwoLevelDictStrStrStr,
	KindStringOrListOfString:           isStringOrListOfString,
	KindIntOrListOfInt:                 isIntOrListOfInt,
}

// Valid applies the validator registered for kind to a decoded JSON value.
// It panics on an unknown kind.
func Valid(kind Kind, value any) bool {
	if int(kind) < 0 || int(kind) >= len(validators) || validators[kind] == nil {
		panic(fmt.Sprintf("checker: unknown kind %d", kind))
	}
	return validators[kind](value)
}

// Check validates each declared attribute present in attrs against its kind.
// It returns the violations for paramName, listing every offending attribute
// name (sorted for stable output), not only the first one.
func Check(attrs map[string]any, schema Schema, paramName string) *report.Violations {
	violations := report.NewViolations(fmt.Sprintf("%s JSON data with erroneous types", paramName))
	var offending []string
	for name, kind := range schema {
		value, ok := attrs[name]
		if !ok {
			continue
		}
		if !Valid(kind, value) {
			offending = append(offending, name)
		}
	}
	sort.Strings(offending)
	for _, name := range offending {
		violations.Add("%s", name)
	}
	return violations
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// isInt accepts integral float64 values: encoding/json decodes every JSON
// number to float64.
func isInt(v any) bool {
	f, ok := v.(float64)
	return ok && math.Trunc(f) == f
}

func isFloat(v any) bool {
	_, ok := v.(float64)
	return ok
}

func isList(v any, elem func(any) bool) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range list {
		if !elem(e) {
			return false
		}
	}
	return true
}

func isListOfString(v any) bool { return isList(v, isString) }

func isListOfInt(v any) bool { return isList(v, isInt) }

func isListOfFloat(v any) bool { return isList(v, isFloat) }

func isNoneOrListOfString(v any) bool {
	return v == nil || isListOfString(v)
}

func isDict(v any, val func(any) bool) bool {
	dict, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, e := range dict {
		if !val(e) {
			return false
		}
	}
	return true
}

func isDictStrDict(v any) bool {
	return isDict(v, func(e any) bool {
		_, ok := e.(map[string]any)
		return ok
	})
}

func isDictStrListOfFloat(v any) bool { return isDict(v, isListOfFloat) }

func isDictStrListOfString(v any) bool { return isDict(v, isListOfString) }

func isDictStrStr(v any) bool { return isDict(v, isString) }

func isTwoLevelDictStrStrListOfString(v any) bool {
	return isDict(v, isDictStrListOfString)
}

func isTwoLevelDictStrStrStr(v any) bool { return isDict(v, isDictStrStr) }

func isStringOrListOfString(v any) bool {
	return isString(v) || isListOfString(v)
}

func isIntOrListOfInt(v any) bool {
	return isInt(v) || isListOfInt(v)
}
