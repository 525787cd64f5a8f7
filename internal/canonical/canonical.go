// Package canonical strips volatile fields from resource documents and
// derives the content hash used for every equality decision.
package canonical

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
)

// volatileMetadata lists metadata fields that change without a meaningful edit
var volatileMetadata = []string{
	"resourceVersion",
	"generation",
	"managedFields",
	"creationTimestamp",
}

// Document is a cleaned copy of a resource document and its content hash
type Document struct {
	Cleaned map[string]interface{}
	Hash    string
}

// Canonicalize returns a cleaned deep copy of doc and its hash. The input is
// never modified.
func Canonicalize(doc map[string]interface{}) (*Document, error) {
	if err := requireIdentity(doc); err != nil {
		return nil, err
	}

	cleaned := Clean(doc)
	hash, err := Hash(cleaned)
	if err != nil {
		return nil, err
	}

	return &Document{Cleaned: cleaned, Hash: hash}, nil
}

// Clean returns a deep copy of doc without status and volatile metadata.
func Clean(doc map[string]interface{}) map[string]interface{} {
	cleaned := copyMap(doc)
	delete(cleaned, "status")

	if meta, ok := cleaned["metadata"].(map[string]interface{}); ok {
		for _, field := range volatileMetadata {
			delete(meta, field)
		}
	}

	return cleaned
}

// maxExactInteger is the largest integer an IEEE-754 double holds exactly
const maxExactInteger = 1<<53 - 1

// Hash digests the RFC 8785 canonical JSON form of doc with SHA-256 and
// returns the hex encoding. Integers beyond ±(2^53-1) are hashed as their
// decimal string so that canonicalization to doubles cannot merge them.
func Hash(doc map[string]interface{}) (string, error) {
	raw, err := json.Marshal(exactIntegers(doc))
	if err != nil {
		return "", errors.InvalidDocument(fmt.Sprintf("document is not JSON serializable: %v", err))
	}

	canonicalJSON, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", errors.InvalidDocument(fmt.Sprintf("failed to canonicalize document: %v", err))
	}

	return digest.SHA256.FromBytes(canonicalJSON).Encoded(), nil
}

func requireIdentity(doc map[string]interface{}) error {
	if doc == nil {
		return errors.InvalidDocument("document is empty")
	}
	if kind, _ := doc["kind"].(string); kind == "" {
		return errors.InvalidDocument("document has no kind")
	}
	meta, ok := asStringMap(doc["metadata"])
	if !ok {
		return errors.InvalidDocument("document has no metadata")
	}
	if name, _ := meta["name"].(string); name == "" {
		return errors.InvalidDocument("document has no metadata.name")
	}
	return nil
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies JSON-like values. YAML decoders may hand back
// map[interface{}]interface{}; those are converted to string keys.
func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMap(val)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return val
	}
}

// exactIntegers returns a copy of v with integers outside the exact double
// range replaced by their decimal string. Values in range are left as is.
func exactIntegers(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = exactIntegers(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = exactIntegers(item)
		}
		return out
	case int:
		return signedInteger(int64(val))
	case int64:
		return signedInteger(val)
	case uint:
		return unsignedInteger(uint64(val))
	case uint64:
		return unsignedInteger(val)
	case json.Number:
		if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return signedInteger(n)
		}
		if n, err := strconv.ParseUint(string(val), 10, 64); err == nil {
			return unsignedInteger(n)
		}
		return val
	default:
		return val
	}
}

func signedInteger(n int64) interface{} {
	if n > maxExactInteger || n < -maxExactInteger {
		return strconv.FormatInt(n, 10)
	}
	return n
}

func unsignedInteger(n uint64) interface{} {
	if n > maxExactInteger {
		return strconv.FormatUint(n, 10)
	}
	return n
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case map[interface{}]interface{}:
		out, _ := copyValue(val).(map[string]interface{})
		return out, true
	default:
		return nil, false
	}
}
