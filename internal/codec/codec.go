// Package codec decodes remote list documents into records.
// A document is a top-level array of dictionaries in one of the supported
// formats: JSON (comments and trailing commas allowed), YAML, Apple property
// list (XML or binary), or MessagePack.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"reflect"
	"strings"

	"github.com/tailscale/hujson"
	ugorji "github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/mesh-intelligence/shelf/pkg/internetdate"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Format names a document encoding.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatPlist   Format = "plist"
	FormatMsgpack Format = "msgpack"
)

// Options tune decoding.
type Options struct {
	// DateFields are top-level fields whose string values are parsed as
	// internet dates. Values that fail to parse are left as strings.
	DateFields []string
}

var contentTypes = map[string]Format{
	"application/json":          FormatJSON,
	"text/json":                 FormatJSON,
	"application/yaml":          FormatYAML,
	"application/x-yaml":        FormatYAML,
	"text/yaml":                 FormatYAML,
	"application/x-plist":       FormatPlist,
	"application/x-apple-plist": FormatPlist,
	"application/x-bplist":      FormatPlist,
	"application/msgpack":       FormatMsgpack,
	"application/x-msgpack":     FormatMsgpack,
	"application/vnd.msgpack":   FormatMsgpack,
}

var extensions = map[string]Format{
	".json":    FormatJSON,
	".jsonc":   FormatJSON,
	".hujson":  FormatJSON,
	".yaml":    FormatYAML,
	".yml":     FormatYAML,
	".plist":   FormatPlist,
	".msgpack": FormatMsgpack,
	".mpk":     FormatMsgpack,
}

// Detect picks a format from a Content-Type header, falling back to the
// extension of name (a URL path or file name), and finally to sniffing data.
func Detect(contentType, name string, data []byte) Format {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if f, ok := contentTypes[strings.ToLower(mt)]; ok {
				return f
			}
		}
	}
	if f, ok := extensions[strings.ToLower(path.Ext(name))]; ok {
		return f
	}
	return sniff(data)
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("bplist")):
		return FormatPlist
	case bytes.HasPrefix(trimmed, []byte("<?xml")), bytes.HasPrefix(trimmed, []byte("<plist")):
		return FormatPlist
	case bytes.HasPrefix(trimmed, []byte("[")), bytes.HasPrefix(trimmed, []byte("/")):
		return FormatJSON
	case len(trimmed) > 0 && trimmed[0]&0xf0 == 0x90, len(trimmed) > 0 && (trimmed[0] == 0xdc || trimmed[0] == 0xdd):
		return FormatMsgpack
	default:
		return FormatYAML
	}
}

// Decode parses data in the given format into records.
func Decode(data []byte, format Format, opts Options) ([]types.Record, error) {
	var doc any
	var err error
	switch format {
	case FormatJSON:
		doc, err = decodeJSON(data)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatPlist:
		_, err = plist.Unmarshal(data, &doc)
	case FormatMsgpack:
		doc, err = decodeMsgpack(data)
	default:
		return nil, fmt.Errorf("%q: %w", format, types.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	return toRecords(doc, opts)
}

func decodeJSON(data []byte) (any, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeMsgpack(data []byte) (any, error) {
	var h ugorji.MsgpackHandle
	h.RawToString = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	var doc any
	if err := ugorji.NewDecoderBytes(data, &h).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func toRecords(doc any, opts Options) ([]types.Record, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("top level is %T: %w", doc, types.ErrNotAList)
	}
	records := make([]types.Record, 0, len(items))
	for i, item := range items {
		v, err := types.FromInterface(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		fields, ok := v.Fields()
		if !ok {
			return nil, fmt.Errorf("item %d is %s: %w", i, v.Kind(), types.ErrNotAList)
		}
		rec := types.Record(fields)
		applyDates(rec, opts.DateFields)
		records = append(records, rec)
	}
	return records, nil
}

func applyDates(rec types.Record, fields []string) {
	for _, f := range fields {
		s, ok := rec[f].Str()
		if !ok {
			continue
		}
		if t, err := internetdate.Parse(s); err == nil {
			rec[f] = types.Date(t)
		}
	}
}
