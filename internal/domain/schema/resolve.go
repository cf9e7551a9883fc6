package schema

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/enumerator"
)

// TypeLookup resolves a custom type name from the type dictionary.
type TypeLookup func(name string) (*TypeDef, bool)

// RefLookup resolves a $ref file name from the dictionary tree.
type RefLookup func(file string) (*Node, bool)

// Resolver expands a node tree into concrete JSON-Schema and BSON-schema
// documents. It is deterministic (output order follows authored order) and
// accumulates every error it encounters instead of stopping at the first.
type Resolver struct {
	Types TypeLookup
	Refs  RefLookup
	Enums *enumerator.Set // set selected by the collection's enumerator version
}

// Result is the pair of expanded schema documents plus every defect found
// along the way. The documents are best-effort when Errors is non-empty.
type Result struct {
	JSON   bson.D
	BSON   bson.D
	Errors []domain.ValidationError
}

// Resolve expands root. The path label (typically the dictionary file name)
// prefixes every reported error location.
func (r *Resolver) Resolve(root *Node, path string) Result {
	w := &walker{resolver: r, memo: make(map[string]*memoEntry)}
	jsonDoc, bsonDoc := w.resolve(root, path, false)
	return Result{JSON: jsonDoc, BSON: bsonDoc, Errors: w.errs}
}

type memoEntry struct {
	json bson.D
	bson bson.D
}

type walker struct {
	resolver  *Resolver
	errs      []domain.ValidationError
	refStack  []string
	typeStack []string
	memo      map[string]*memoEntry
}

func (w *walker) fail(path, kind, format string, args ...any) {
	w.errs = append(w.errs, domain.ValidationError{
		Path:    path,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// resolve returns the JSON and BSON renderings of one node. inType marks
// nodes reached through a complex custom type, whose BSON rendering omits
// the description keyword.
func (w *walker) resolve(n *Node, path string, inType bool) (bson.D, bson.D) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != KindRef && n.Description == "" {
		w.fail(path, domain.KindMissingDescription, "missing required description")
	}

	switch n.Kind {
	case KindRef:
		return w.resolveRef(n, path)
	case KindObject:
		return w.resolveObject(n, path, inType)
	case KindArray:
		return w.resolveArray(n, path, inType)
	case KindEnum, KindEnumArray:
		return w.resolveEnum(n, path, inType)
	case KindOneOf:
		return w.resolveOneOf(n, path, inType)
	case KindCustom:
		return w.resolveCustom(n, path, inType)
	default:
		w.fail(path, domain.KindMissingTypeField, "missing required type")
		return nil, nil
	}
}

func (w *walker) resolveRef(n *Node, path string) (bson.D, bson.D) {
	for _, seen := range w.refStack {
		if seen == n.Ref {
			chain := strings.Join(append(append([]string{}, w.refStack...), n.Ref), " -> ")
			w.fail(path, domain.KindCircularReference, "circular $ref: %s", chain)
			return nil, nil
		}
	}
	if entry, ok := w.memo[n.Ref]; ok {
		return entry.json, entry.bson
	}
	target, ok := w.resolver.Refs(n.Ref)
	if !ok {
		w.fail(path, domain.KindUnknownRef, "$ref %q does not name a dictionary file", n.Ref)
		return nil, nil
	}

	w.refStack = append(w.refStack, n.Ref)
	jsonDoc, bsonDoc := w.resolve(target, n.Ref, false)
	w.refStack = w.refStack[:len(w.refStack)-1]

	w.memo[n.Ref] = &memoEntry{json: jsonDoc, bson: bsonDoc}
	return jsonDoc, bsonDoc
}

func (w *walker) resolveObject(n *Node, path string, inType bool) (bson.D, bson.D) {
	if n.Properties == nil {
		w.fail(path, domain.KindMissingTypeField, "object type requires properties")
	}

	jsonProps := bson.D{}
	bsonProps := bson.D{}
	required := bson.A{}
	for _, p := range n.Properties {
		childJSON, childBSON := w.resolve(p.Node, path+".properties."+p.Name, inType)
		if childJSON != nil {
			jsonProps = append(jsonProps, bson.E{Key: p.Name, Value: childJSON})
		}
		if childBSON != nil {
			bsonProps = append(bsonProps, bson.E{Key: p.Name, Value: childBSON})
		}
		if p.Node.Required {
			required = append(required, p.Name)
		}
	}

	jsonDoc := bson.D{}
	if n.Title != "" {
		jsonDoc = append(jsonDoc, bson.E{Key: "title", Value: n.Title})
	}
	jsonDoc = append(jsonDoc,
		bson.E{Key: "description", Value: n.Description},
		bson.E{Key: "type", Value: "object"},
		bson.E{Key: "properties", Value: jsonProps},
	)
	if len(required) > 0 {
		jsonDoc = append(jsonDoc, bson.E{Key: "required", Value: required})
	}
	jsonDoc = append(jsonDoc, bson.E{Key: "additionalProperties", Value: n.AdditionalProperties})

	bsonDoc := bson.D{}
	if !inType {
		bsonDoc = append(bsonDoc, bson.E{Key: "description", Value: n.Description})
	}
	bsonDoc = append(bsonDoc,
		bson.E{Key: "bsonType", Value: "object"},
		bson.E{Key: "properties", Value: bsonProps},
	)
	if len(required) > 0 {
		bsonDoc = append(bsonDoc, bson.E{Key: "required", Value: cloneValue(required)})
	}
	bsonDoc = append(bsonDoc, bson.E{Key: "additionalProperties", Value: n.AdditionalProperties})
	return jsonDoc, bsonDoc
}

func (w *walker) resolveArray(n *Node, path string, inType bool) (bson.D, bson.D) {
	jsonDoc := bson.D{
		{Key: "description", Value: n.Description},
		{Key: "type", Value: "array"},
	}
	bsonDoc := bson.D{}
	if !inType {
		bsonDoc = append(bsonDoc, bson.E{Key: "description", Value: n.Description})
	}
	bsonDoc = append(bsonDoc, bson.E{Key: "bsonType", Value: "array"})

	if n.Items == nil {
		w.fail(path, domain.KindMissingTypeField, "array type requires items")
		return jsonDoc, bsonDoc
	}
	itemsJSON, itemsBSON := w.resolve(n.Items, path+".items", inType)
	if itemsJSON != nil {
		jsonDoc = append(jsonDoc, bson.E{Key: "items", Value: itemsJSON})
	}
	if itemsBSON != nil {
		bsonDoc = append(bsonDoc, bson.E{Key: "items", Value: itemsBSON})
	}
	return jsonDoc, bsonDoc
}

func (w *walker) resolveEnum(n *Node, path string, inType bool) (bson.D, bson.D) {
	values := bson.A{}
	if n.Enums == "" {
		w.fail(path, domain.KindMissingTypeField, "%s type requires an enums reference", n.Kind)
	} else if w.resolver.Enums == nil {
		w.fail(path, domain.KindUnknownEnumerator, "no enumerator set available for %q", n.Enums)
	} else if names, err := w.resolver.Enums.ValueNames(n.Enums); err != nil {
		w.fail(path, domain.KindUnknownEnumerator, "%v", err)
	} else {
		for _, name := range names {
			values = append(values, name)
		}
	}

	if n.Kind == KindEnum {
		jsonDoc := bson.D{
			{Key: "description", Value: n.Description},
			{Key: "type", Value: "string"},
			{Key: "enum", Value: values},
		}
		bsonDoc := bson.D{}
		if !inType {
			bsonDoc = append(bsonDoc, bson.E{Key: "description", Value: n.Description})
		}
		bsonDoc = append(bsonDoc,
			bson.E{Key: "bsonType", Value: "string"},
			bson.E{Key: "enum", Value: cloneValue(values)},
		)
		return jsonDoc, bsonDoc
	}

	jsonDoc := bson.D{
		{Key: "description", Value: n.Description},
		{Key: "type", Value: "array"},
		{Key: "items", Value: bson.D{
			{Key: "type", Value: "string"},
			{Key: "enum", Value: values},
		}},
	}
	bsonDoc := bson.D{}
	if !inType {
		bsonDoc = append(bsonDoc, bson.E{Key: "description", Value: n.Description})
	}
	bsonDoc = append(bsonDoc,
		bson.E{Key: "bsonType", Value: "array"},
		bson.E{Key: "items", Value: bson.D{
			{Key: "bsonType", Value: "string"},
			{Key: "enum", Value: cloneValue(values)},
		}},
	)
	return jsonDoc, bsonDoc
}

// resolveOneOf emits a base object that pins the discriminator property to
// the declared value set. The JSON form expresses each alternative as a
// draft-07 style {if, then} pair; the BSON form uses {allOf: [pin, branch]}
// alternatives because the server's $jsonSchema dialect has no if/then.
func (w *walker) resolveOneOf(n *Node, path string, inType bool) (bson.D, bson.D) {
	if n.TypeProperty == "" {
		w.fail(path, domain.KindMissingTypeField, "one_of type requires type_property")
	}
	if len(n.Branches) == 0 {
		w.fail(path, domain.KindMissingTypeField, "one_of type requires a non-empty schemas map")
	}

	values := bson.A{}
	for _, b := range n.Branches {
		values = append(values, b.Value)
	}

	jsonAlts := bson.A{}
	bsonAlts := bson.A{}
	for _, b := range n.Branches {
		branchJSON, branchBSON := w.resolve(b.Node, path+".schemas."+b.Value, inType)
		jsonAlts = append(jsonAlts, bson.D{
			{Key: "if", Value: bson.D{
				{Key: "properties", Value: bson.D{
					{Key: n.TypeProperty, Value: bson.D{{Key: "const", Value: b.Value}}},
				}},
			}},
			{Key: "then", Value: branchJSON},
		})
		bsonAlts = append(bsonAlts, bson.D{
			{Key: "allOf", Value: bson.A{
				bson.D{
					{Key: "properties", Value: bson.D{
						{Key: n.TypeProperty, Value: bson.D{{Key: "enum", Value: bson.A{b.Value}}}},
					}},
					{Key: "required", Value: bson.A{n.TypeProperty}},
				},
				branchBSON,
			}},
		})
	}

	jsonDoc := bson.D{
		{Key: "description", Value: n.Description},
		{Key: "type", Value: "object"},
		{Key: "properties", Value: bson.D{
			{Key: n.TypeProperty, Value: bson.D{
				{Key: "type", Value: "string"},
				{Key: "enum", Value: values},
			}},
		}},
		{Key: "required", Value: bson.A{n.TypeProperty}},
		{Key: "oneOf", Value: jsonAlts},
	}

	bsonDoc := bson.D{}
	if !inType {
		bsonDoc = append(bsonDoc, bson.E{Key: "description", Value: n.Description})
	}
	bsonDoc = append(bsonDoc,
		bson.E{Key: "bsonType", Value: "object"},
		bson.E{Key: "properties", Value: bson.D{
			{Key: n.TypeProperty, Value: bson.D{
				{Key: "bsonType", Value: "string"},
				{Key: "enum", Value: cloneValue(values)},
			}},
		}},
		bson.E{Key: "required", Value: bson.A{n.TypeProperty}},
		bson.E{Key: "oneOf", Value: bsonAlts},
	)
	return jsonDoc, bsonDoc
}

func (w *walker) resolveCustom(n *Node, path string, inType bool) (bson.D, bson.D) {
	for _, seen := range w.typeStack {
		if seen == n.TypeName {
			chain := strings.Join(append(append([]string{}, w.typeStack...), n.TypeName), " -> ")
			w.fail(path, domain.KindCircularTypeRef, "circular type reference: %s", chain)
			return nil, nil
		}
	}
	def, ok := w.resolver.Types(n.TypeName)
	if !ok {
		w.fail(path, domain.KindUnknownType, "type %q is not in the type dictionary", n.TypeName)
		return nil, nil
	}

	desc := n.Description
	if desc == "" {
		desc = def.Description
	}

	var jsonDoc, bsonDoc bson.D
	switch {
	case def.IsCommon():
		jsonDoc = cloneDoc(def.Schema)
		bsonDoc = bsonizePrimitive(def.Schema)
	case def.IsPrimitive():
		jsonDoc = cloneDoc(def.JSONSchema)
		bsonDoc = cloneDoc(def.BSONSchema)
	default:
		w.typeStack = append(w.typeStack, n.TypeName)
		jsonDoc, bsonDoc = w.resolve(def.Node, path+"("+n.TypeName+")", true)
		w.typeStack = w.typeStack[:len(w.typeStack)-1]
	}

	// The referring property's description wins over the type's own.
	jsonDoc = withDescription(jsonDoc, desc)
	if !inType {
		bsonDoc = withDescription(bsonDoc, desc)
	}
	return jsonDoc, bsonDoc
}

// bsonizePrimitive deep-copies a common primitive body and rewrites the
// top-level type keyword for the BSON dialect: the key becomes bsonType and
// the JSON type names integer and number become int and double.
func bsonizePrimitive(d bson.D) bson.D {
	out := cloneDoc(d)
	for i, e := range out {
		if e.Key != "type" {
			continue
		}
		value := e.Value
		if s, ok := value.(string); ok {
			switch s {
			case "integer":
				value = "int"
			case "number":
				value = "double"
			}
		}
		out[i] = bson.E{Key: "bsonType", Value: value}
		break
	}
	return out
}

// withDescription sets the description keyword on a copy of d, replacing an
// existing entry in place or prepending one.
func withDescription(d bson.D, desc string) bson.D {
	if d == nil || desc == "" {
		return d
	}
	out := make(bson.D, 0, len(d)+1)
	replaced := false
	for _, e := range d {
		if e.Key == "description" {
			out = append(out, bson.E{Key: "description", Value: desc})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(bson.D{{Key: "description", Value: desc}}, out...)
	}
	return out
}

func cloneDoc(d bson.D) bson.D {
	if d == nil {
		return nil
	}
	out := make(bson.D, len(d))
	for i, e := range d {
		out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		return cloneDoc(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
