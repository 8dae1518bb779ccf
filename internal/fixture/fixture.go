// Package fixture generates a sample dataset of monitoring events. It feeds
// the example command and the round trip tests of the other packages.
package fixture

import (
	"fmt"
	"math/rand/v2"

	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Epoch is the timestamp of the first generated event, in milliseconds.
const Epoch int64 = 1_625_079_600_000

var hosts = []string{"server1", "server2", "db-primary", "db-replica", "edge-eu", "edge-us"}
var labels = []string{"prod", "staging", "canary", "ssd", "arm64", "gpu"}

// Schema returns the schema of the rows produced by Events.
func Schema() schema.Table {
	utf8 := schema.Binary{Default: schema.Allow, Encoding: schema.BinaryEncodingUTF8}
	integer := schema.Int{Default: schema.Allow, Encoding: schema.IntEncodingInt}

	return schema.ArrayTable{
		Default: schema.Allow,
		Element: schema.Struct{
			Default: schema.Deny,
			Fields: []schema.Field{
				{Name: "id", Schema: schema.Int{Default: schema.Deny, Encoding: schema.IntEncodingInt}},
				{Name: "at", Schema: schema.Int{Default: schema.Deny, Encoding: schema.IntEncodingTimeMilliseconds}},
				{Name: "host", Schema: utf8},
				{Name: "tags", Schema: schema.Array{Default: schema.Allow, Element: utf8}},
				{Name: "reading", Schema: schema.Enum{
					Default: schema.Deny,
					Variants: []schema.Variant{
						{Name: "gauge", Tag: 0, Schema: schema.Double{Default: schema.Allow}},
						{Name: "counter", Tag: 1, Schema: integer},
						{Name: "message", Tag: 2, Schema: utf8},
						{Name: "heartbeat", Tag: 7, Schema: schema.Unit{}},
					},
				}},
				{Name: "attrs", Schema: schema.Map{Default: schema.Allow, Key: utf8, Value: integer}},
				{Name: "samples", Schema: schema.Nested{
					Default: schema.Allow,
					Table:   schema.ArrayTable{Default: schema.Allow, Element: integer},
				}},
				{Name: "payload", Schema: schema.Binary{Default: schema.Allow, Encoding: schema.BinaryEncodingBinary}},
			},
		},
	}
}

// Events generates n rows matching Schema. The same seed always yields the
// same rows.
func Events(seed uint64, n int) logical.ArrayTable {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	rows := make(logical.ArrayTable, n)
	at := Epoch
	for i := range rows {
		at += r.Int64N(5_000)
		rows[i] = event(r, int64(i), at)
	}
	return rows
}

func event(r *rand.Rand, id, at int64) logical.Struct {
	tags := make(logical.Array, r.IntN(4))
	for i := range tags {
		tags[i] = logical.Binary(labels[r.IntN(len(labels))])
	}

	attrs := make(logical.Map, r.IntN(3))
	for i := range attrs {
		attrs[i] = logical.Pair{
			Key:   logical.Binary(fmt.Sprintf("attr%d", i)),
			Value: logical.Int(r.Int64N(1 << 20)),
		}
	}

	samples := make(logical.ArrayTable, r.IntN(6))
	base := r.Int64N(1_000)
	for i := range samples {
		samples[i] = logical.Int(base + r.Int64N(16))
	}

	payload := make(logical.Binary, r.IntN(12))
	for i := range payload {
		payload[i] = byte(r.UintN(256))
	}

	return logical.Struct{
		{Name: "id", Value: logical.Int(id)},
		{Name: "at", Value: logical.Int(at)},
		{Name: "host", Value: logical.Binary(hosts[r.IntN(len(hosts))])},
		{Name: "tags", Value: tags},
		{Name: "reading", Value: reading(r)},
		{Name: "attrs", Value: attrs},
		{Name: "samples", Value: logical.Nested{Table: samples}},
		{Name: "payload", Value: payload},
	}
}

func reading(r *rand.Rand) logical.Enum {
	switch r.IntN(4) {
	case 0:
		return logical.Enum{Tag: 0, Value: logical.Double(r.NormFloat64()*10 + 50)}
	case 1:
		return logical.Enum{Tag: 1, Value: logical.Int(r.Int64N(1 << 32))}
	case 2:
		return logical.Enum{Tag: 2, Value: logical.Binary(fmt.Sprintf("restart #%d", r.IntN(100)))}
	default:
		return logical.Enum{Tag: 7, Value: logical.Unit{}}
	}
}
