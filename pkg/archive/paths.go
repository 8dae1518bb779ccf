package archive

import (
	"strings"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Column paths name the node owning a block. The rows of the table are the
// root "", struct fields join with ".", array elements append "[]", map
// sides append "{key}" and "{value}", enum variants append "<name>" and a
// nested table appends "/".

func fieldPath(parent, name string) string {
	if parent == "" || strings.HasSuffix(parent, "/") {
		return parent + name
	}
	return parent + "." + name
}

func elementPath(parent string) string { return parent + "[]" }
func keyPath(parent string) string { return parent + "{key}" }
func valuePath(parent string) string { return parent + "{value}" }
func variantPath(parent, name string) string { return parent + "<" + name + ">" }
func nestedPath(parent string) string { return parent + "/" }

// ColumnPaths lists the column paths of a schema in block order, each path
// once. These are the keys accepted by Config.Overrides.
func ColumnPaths(s schema.Table) []string {
	var paths []string
	walkTable("", s, func(path string, _ blockKind) {
		if len(paths) == 0 || paths[len(paths)-1] != path {
			paths = append(paths, path)
		}
	})
	return paths
}

// blocksPerChunk is the number of blocks every chunk of s carries.
func blocksPerChunk(s schema.Table) int {
	n := 0
	walkTable("", s, func(string, blockKind) { n++ })
	return n
}

// walkTable visits the leaf vectors of a schema in block order.
func walkTable(path string, s schema.Table, visit func(path string, kind blockKind)) {
	switch s := s.(type) {
	case schema.BinaryTable:
		visit(path, blockBytes)
	case schema.ArrayTable:
		walkValue(path, s.Element, visit)
	case schema.MapTable:
		walkValue(keyPath(path), s.Key, visit)
		walkValue(valuePath(path), s.Value, visit)
	}
}

func walkValue(path string, s schema.Value, visit func(path string, kind blockKind)) {
	switch s := s.(type) {
	case schema.Unit:
	case schema.Int:
		visit(path, blockInts)
	case schema.Double:
		visit(path, blockDoubles)
	case schema.Binary:
		visit(path, blockInts)
		visit(path, blockBytes)
	case schema.Array:
		visit(path, blockInts)
		walkValue(elementPath(path), s.Element, visit)
	case schema.Map:
		visit(path, blockInts)
		walkValue(keyPath(path), s.Key, visit)
		walkValue(valuePath(path), s.Value, visit)
	case schema.Struct:
		for _, f := range s.Fields {
			walkValue(fieldPath(path, f.Name), f.Schema, visit)
		}
	case schema.Enum:
		visit(path, blockInts)
		for _, v := range s.Variants {
			walkValue(variantPath(path, v.Name), v.Schema, visit)
		}
	case schema.Nested:
		visit(path, blockInts)
		walkTable(nestedPath(path), s.Table, visit)
	}
}
