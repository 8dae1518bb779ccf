package schema

import "strconv"

// Paths locate a node inside a value tree for error reporting. A negative
// index means "any element" and is used when checking schemas alone.

func FieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func IndexPath(parent string, i int) string {
	if i < 0 {
		return parent + "[]"
	}
	return parent + "[" + strconv.Itoa(i) + "]"
}

func KeyPath(parent string, i int) string {
	return IndexPath(parent, i) + ".key"
}

func ValuePath(parent string, i int) string {
	return IndexPath(parent, i) + ".value"
}

func VariantPath(parent, name string) string {
	return parent + "<" + name + ">"
}
