package feed

import (
	"math"

	"github.com/tidwall/gjson"

	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
	"threatcache/internal/ports"
)

// ParseDocument validates the top-level shape of a feed document and decodes
// its entries. A body that is not a JSON array fails with errs.KindDataFormat.
// Elements that are not well-formed entries are counted in skipped and left
// out; they never fail the document.
func ParseDocument(body []byte) (entries []threatintel.FeedEntry, skipped int, err error) {
	const op = "parse feed"

	if !gjson.ValidBytes(body) {
		return nil, 0, errs.Ef(errs.KindDataFormat, op, "body is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, 0, errs.Ef(errs.KindDataFormat, op, "top-level value is %s, want array", describe(doc))
	}

	doc.ForEach(func(_, value gjson.Result) bool {
		entry, ok := parseEntry(value)
		if !ok {
			skipped++
			return true
		}
		entries = append(entries, entry)
		return true
	})
	return entries, skipped, nil
}

// parseEntry requires an object with hashes (array of strings) and integer
// type, match and level.
func parseEntry(value gjson.Result) (threatintel.FeedEntry, bool) {
	if !value.IsObject() {
		return threatintel.FeedEntry{}, false
	}

	hashes := value.Get("hashes")
	if !hashes.IsArray() {
		return threatintel.FeedEntry{}, false
	}
	items := hashes.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			return threatintel.FeedEntry{}, false
		}
		out = append(out, item.Str)
	}

	typ, ok := integer(value.Get("type"))
	if !ok {
		return threatintel.FeedEntry{}, false
	}
	match, ok := integer(value.Get("match"))
	if !ok {
		return threatintel.FeedEntry{}, false
	}
	level, ok := integer(value.Get("level"))
	if !ok {
		return threatintel.FeedEntry{}, false
	}

	return threatintel.FeedEntry{Hashes: out, Type: typ, Match: match, Level: level}, true
}

func integer(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func describe(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "object"
	case v.Type == gjson.String:
		return "string"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	case v.Type == gjson.Null:
		return "null"
	default:
		return "empty"
	}
}

// Parser adapts ParseDocument to ports.FeedParser.
type Parser struct{}

var _ ports.FeedParser = Parser{}

func (Parser) Parse(body []byte) ([]threatintel.FeedEntry, int, error) {
	return ParseDocument(body)
}
