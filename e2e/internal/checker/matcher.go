package checker

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Any matches every non-nil value
const Any = "*"

// MatchesExpectation checks actual (decoded JSON) against expected (decoded YAML).
// Returns (true, "") on match, (false, "reason") on mismatch.
//
// String expectations may carry a matcher: "*" for any non-nil value, "~re~"
// for a regular expression on the formatted value, ">n", "<n", ">=n", "<=n"
// for numeric comparison, and "#n", "#>n", "#<=n" on the length of an
// array, object or string.
//
// Objects match when every expected key matches; extra actual keys are ignored.
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	switch {
	case expected == nil && actual == nil:
		return true, ""
	case expected == nil:
		return false, fmt.Sprintf("expected nil, got %v", actual)
	case actual == nil:
		return false, fmt.Sprintf("expected %v, got nil", expected)
	}

	if s, ok := expected.(string); ok {
		switch {
		case s == Any:
			return true, ""
		case len(s) > 1 && strings.HasPrefix(s, "~") && strings.HasSuffix(s, "~"):
			return matchRegex(actual, strings.Trim(s, "~"))
		case strings.HasPrefix(s, "#"):
			return matchLength(actual, strings.TrimPrefix(s, "#"))
		case strings.HasPrefix(s, ">") || strings.HasPrefix(s, "<"):
			return matchComparison(actual, s)
		}
		got, ok := actual.(string)
		if !ok {
			return false, fmt.Sprintf("expected string %q, got %T", s, actual)
		}
		if got != s {
			return false, fmt.Sprintf("expected %q, got %q", s, got)
		}
		return true, ""
	}

	if b, ok := expected.(bool); ok {
		got, ok := actual.(bool)
		if !ok || got != b {
			return false, fmt.Sprintf("expected %v, got %v", b, actual)
		}
		return true, ""
	}

	if want, err := toFloat64(expected); err == nil {
		got, err := toFloat64(actual)
		if err != nil {
			return false, fmt.Sprintf("expected number %v, got %T", expected, actual)
		}
		if got != want {
			return false, fmt.Sprintf("expected %v, got %v", expected, actual)
		}
		return true, ""
	}

	switch reflect.TypeOf(expected).Kind() {
	case reflect.Map:
		return matchMap(actual, expected)
	case reflect.Slice, reflect.Array:
		return matchArray(actual, expected)
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	s := fmt.Sprintf("%v", actual)
	if re.MatchString(s) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match pattern ~%s~", s, pattern)
}

func matchLength(actual interface{}, cond string) (bool, string) {
	v := reflect.ValueOf(actual)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
	default:
		return false, fmt.Sprintf("cannot take length of %T", actual)
	}

	n := v.Len()
	if !strings.HasPrefix(cond, ">") && !strings.HasPrefix(cond, "<") {
		cond = "=" + cond
	}
	ok, reason := compare(float64(n), cond)
	if !ok {
		return false, "length " + reason
	}
	return true, ""
}

func matchComparison(actual interface{}, cond string) (bool, string) {
	got, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}
	return compare(got, cond)
}

// compare evaluates got against an operator-prefixed threshold
func compare(got float64, cond string) (bool, string) {
	op := cond[:1]
	if strings.HasPrefix(cond, ">=") || strings.HasPrefix(cond, "<=") {
		op = cond[:2]
	}

	want, err := strconv.ParseFloat(strings.TrimSpace(cond[len(op):]), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison value: %s", cond)
	}

	var ok bool
	switch op {
	case ">":
		ok = got > want
	case "<":
		ok = got < want
	case ">=":
		ok = got >= want
	case "<=":
		ok = got <= want
	case "=":
		ok = got == want
	default:
		return false, fmt.Sprintf("invalid comparison: %s", cond)
	}

	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("%v is not %s %v", got, op, want)
}

func matchMap(actual, expected interface{}) (bool, string) {
	got, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected object, got %T", actual)
	}

	want := reflect.ValueOf(expected)
	for _, key := range want.MapKeys() {
		name := fmt.Sprintf("%v", key.Interface())
		value, exists := got[name]
		if !exists {
			return false, fmt.Sprintf("missing key %q", name)
		}
		if ok, reason := MatchesExpectation(value, want.MapIndex(key).Interface()); !ok {
			return false, fmt.Sprintf("key %q: %s", name, reason)
		}
	}

	return true, ""
}

// matchArray compares element-wise; an expected array shorter than actual
// only constrains the leading elements
func matchArray(actual, expected interface{}) (bool, string) {
	got := reflect.ValueOf(actual)
	if got.Kind() != reflect.Slice && got.Kind() != reflect.Array {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}

	want := reflect.ValueOf(expected)
	if got.Len() < want.Len() {
		return false, fmt.Sprintf("expected at least %d elements, got %d", want.Len(), got.Len())
	}

	for i := 0; i < want.Len(); i++ {
		if ok, reason := MatchesExpectation(got.Index(i).Interface(), want.Index(i).Interface()); !ok {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}

	return true, ""
}

func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a numeric type: %T", val)
	}
}
