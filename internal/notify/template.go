package notify

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)
	textPolicy    = bluemonday.StrictPolicy()
)

// Interpolate substitutes {{field}}, {{object.field}} and {{actor.field}}
// placeholders. {{field}} and {{object.field}} resolve against result,
// {{actor.field}} against actor. Unresolvable placeholders become the empty
// string; interpolation never fails.
func Interpolate(template string, result, actor any) string {
	if template == "" {
		return ""
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		segments := strings.Split(path, ".")

		target := result
		switch segments[0] {
		case "actor":
			target = actor
			segments = segments[1:]
		case "object":
			segments = segments[1:]
		}
		if len(segments) == 0 {
			return ""
		}
		return stringify(lookupPath(target, segments))
	})
}

// SanitizeText strips any markup that leaked into interpolated text.
// Business results may carry user-entered strings.
func SanitizeText(s string) string {
	return textPolicy.Sanitize(s)
}

func lookupPath(obj any, segments []string) any {
	current := obj
	for _, segment := range segments {
		if current == nil {
			return nil
		}
		current = lookupField(current, segment)
	}
	return current
}

// lookupField reads one named field off a map or struct, tolerating the
// casing differences between JSON payloads and Go structs.
func lookupField(obj any, name string) any {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil
		}
		for _, key := range v.MapKeys() {
			if keyMatches(key.String(), name) {
				val := v.MapIndex(key)
				if !val.IsValid() {
					return nil
				}
				return val.Interface()
			}
		}
		return nil
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if keyMatches(field.Name, name) || keyMatches(jsonName(field), name) {
				return v.Field(i).Interface()
			}
		}
		return nil
	default:
		return nil
	}
}

func keyMatches(key, name string) bool {
	if key == "" {
		return false
	}
	normalize := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", ""))
	}
	return normalize(key) == normalize(name)
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	return fmt.Sprintf("%v", rv.Interface())
}
