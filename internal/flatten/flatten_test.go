package flatten_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionexport/mentionexport/internal/flatten"
	"github.com/mentionexport/mentionexport/internal/mentions"
)

func page(records ...string) mentions.Page {
	p := make(mentions.Page, len(records))
	for i, r := range records {
		p[i] = mentions.Record(r)
	}
	return p
}

func collect(seq func(func(flatten.Row) bool)) []flatten.Row {
	var rows []flatten.Row
	for row := range seq {
		rows = append(rows, row)
	}
	return rows
}

func texts(values []flatten.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Text()
	}
	return out
}

func TestFlatten_NestedObjectsBecomeDottedColumns(t *testing.T) {
	rows, schema := flatten.Flatten(page(`{"a":1,"b":{"c":2}}`), nil)
	require.NotNil(t, schema)

	assert.Equal(t, []string{"a", "b.c"}, schema.Columns())

	got := collect(rows)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"1", "2"}, texts(got[0].Values))
	assert.Empty(t, got[0].Extra)
}

func TestFlatten_SchemaIsUnionInFirstObservedOrder(t *testing.T) {
	rows, schema := flatten.Flatten(page(
		`{"id":"m1","author":{"name":"ann"}}`,
		`{"id":"m2","sentiment":"positive","author":{"name":"bob","handle":"@bob"}}`,
	), nil)

	assert.Equal(t, []string{"id", "author.name", "sentiment", "author.handle"}, schema.Columns())

	got := collect(rows)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"m1", "ann", "", ""}, texts(got[0].Values))
	assert.Equal(t, []string{"m2", "bob", "positive", "@bob"}, texts(got[1].Values))
}

func TestFlatten_KeyOrderFollowsDocument(t *testing.T) {
	_, schema := flatten.Flatten(page(`{"z":1,"a":2,"m":{"y":3,"b":4}}`), nil)

	assert.Equal(t, []string{"z", "a", "m.y", "m.b"}, schema.Columns())
}

func TestFlatten_LaterPagesProjectOntoSchema(t *testing.T) {
	_, schema := flatten.Flatten(page(`{"a":1,"b":2}`), nil)

	rows, same := flatten.Flatten(page(`{"b":20,"c":30}`), schema)
	assert.Same(t, schema, same)

	got := collect(rows)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"", "20"}, texts(got[0].Values))
	require.Len(t, got[0].Extra, 1)
	assert.Equal(t, "c", got[0].Extra[0].Column)
	assert.Equal(t, "30", got[0].Extra[0].Value.Text())
}

func TestFlatten_ValueKinds(t *testing.T) {
	rows, schema := flatten.Flatten(page(
		`{"s":"text","n":1.5,"t":true,"f":false,"z":null,"arr":[1, 2],"empty":{}}`,
	), nil)

	assert.Equal(t, []string{"s", "n", "t", "f", "z", "arr", "empty"}, schema.Columns())

	got := collect(rows)
	require.Len(t, got, 1)

	v := got[0].Values
	assert.Equal(t, flatten.Value{Kind: flatten.KindString, Raw: "text"}, v[0])
	assert.Equal(t, flatten.Value{Kind: flatten.KindNumber, Raw: "1.5"}, v[1])
	assert.Equal(t, flatten.Value{Kind: flatten.KindBool, Raw: "true"}, v[2])
	assert.Equal(t, flatten.Value{Kind: flatten.KindBool, Raw: "false"}, v[3])
	assert.Equal(t, flatten.Value{}, v[4])
	assert.Equal(t, flatten.Value{Kind: flatten.KindJSON, Raw: "[1,2]"}, v[5])
	assert.Equal(t, flatten.Value{Kind: flatten.KindJSON, Raw: "{}"}, v[6])
}

func TestFlatten_MalformedRecordsYieldEmptyRows(t *testing.T) {
	rows, schema := flatten.Flatten(page(`{"a":1}`, `not json`, `[1,2]`), nil)

	assert.Equal(t, []string{"a"}, schema.Columns())

	got := collect(rows)
	require.Len(t, got, 3)
	assert.Equal(t, []string{""}, texts(got[1].Values))
	assert.Equal(t, []string{""}, texts(got[2].Values))
}

func TestFlatten_EmptyPage(t *testing.T) {
	rows, schema := flatten.Flatten(mentions.Page{}, nil)

	assert.Equal(t, 0, schema.Len())
	assert.Empty(t, collect(rows))
}

func TestFlatten_StopsEarly(t *testing.T) {
	_, schema := flatten.Flatten(page(`{"a":1}`), nil)
	rows, _ := flatten.Flatten(page(`{"a":1}`, `{"a":2}`, `{"a":3}`), schema)

	var seen int
	for range rows {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestNewSchema_IgnoresDuplicates(t *testing.T) {
	s := flatten.NewSchema("a", "b", "a")

	assert.Equal(t, []string{"a", "b"}, s.Columns())
	assert.Equal(t, 2, s.Len())
}
