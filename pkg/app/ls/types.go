package ls

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Request represents a device listing request
type Request struct {
	DevicePath string
	Fields     []Field
	Headers    bool

	// Metadata access
	UseMetadataSnap bool
	Exclusive       bool
	CacheBlocks     int

	// Analysis tuning
	VerifyCounts  bool
	CacheMappings bool
}

// Response represents a device listing
type Response struct {
	Fields        []Field `json:"fields" yaml:"fields"`
	Headers       bool    `json:"-" yaml:"-"`
	DataBlockSize uint32  `json:"data_block_size" yaml:"data_block_size"`
	Devices       []Row   `json:"devices" yaml:"devices"`
}

// Row holds one device's values in column order
type Row struct {
	Fields []Field
	Values []uint64
}

// Get returns the value of a column, and false if the row lacks it
func (r Row) Get(f Field) (uint64, bool) {
	for i, field := range r.Fields {
		if field == f {
			return r.Values[i], true
		}
	}
	return 0, false
}

// MarshalJSON encodes the row as an object with keys in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(f))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(r.Values[i], 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the row as a mapping with keys in column order
func (r Row) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, f := range r.Fields {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(f)},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(r.Values[i], 10)},
		)
	}
	return node, nil
}
