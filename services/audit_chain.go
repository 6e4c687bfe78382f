package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/casetrail/casetrail/models"
)

// GenesisHash is the previous-log-hash sentinel for the first entry ever
// written: there is no predecessor, so the chain starts from a fixed,
// well-known value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrUnserializableDetails is returned when a details payload contains a
// non-scalar leaf value. The entry is rejected before hashing, so a bad
// payload can never corrupt the chain.
var ErrUnserializableDetails = fmt.Errorf("audit details contain non-scalar values")

// nullSentinel marks an absent optional field in the canonical byte stream.
// It can never collide with a present value because present values are
// length-prefixed: "null" and "" encode as 4:null and 0: respectively, both
// distinct from the single NUL byte.
const nullSentinel = "\x00"

// CanonicalSerialize renders an entry's semantic fields (everything except
// the two hash fields) into a deterministic byte sequence. Field order is
// fixed by this function, not by struct layout or map iteration; details
// keys are sorted; every value is length-prefixed. Two logically equal
// entries always serialize to the same bytes, on any platform.
func CanonicalSerialize(e *models.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer

	writeField(&buf, "id", e.ID)
	writeField(&buf, "timestamp", e.Timestamp)
	writeField(&buf, "event_type", string(e.EventType))
	writeOptionalField(&buf, "user_id", e.UserID)
	writeField(&buf, "resource_type", e.ResourceType)
	writeField(&buf, "resource_id", e.ResourceID)
	writeField(&buf, "action", string(e.Action))

	if err := writeDetails(&buf, e.Details); err != nil {
		return nil, err
	}

	writeOptionalField(&buf, "ip_address", e.IPAddress)
	writeOptionalField(&buf, "user_agent", e.UserAgent)
	writeField(&buf, "success", strconv.FormatBool(e.Success))
	writeOptionalField(&buf, "error_message", e.ErrorMessage)

	return buf.Bytes(), nil
}

// ComputeIntegrityHash hashes the canonical serialization concatenated with
// the previous entry's integrity hash. Pure: the same inputs produce the
// same hex SHA-256 digest across restarts and platforms.
func ComputeIntegrityHash(canonical []byte, previousHash string) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeEntryHash recomputes what an entry's integrity hash should be,
// given its fields and its stored previous-log-hash. Used by the append
// engine to seal new entries and by the verifier to check stored ones.
func ComputeEntryHash(e *models.AuditLogEntry) (string, error) {
	canonical, err := CanonicalSerialize(e)
	if err != nil {
		return "", err
	}
	return ComputeIntegrityHash(canonical, e.PreviousLogHash), nil
}

func writeField(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteByte('=')
	buf.WriteString(strconv.Itoa(len(value)))
	buf.WriteByte(':')
	buf.WriteString(value)
	buf.WriteByte('\n')
}

func writeOptionalField(buf *bytes.Buffer, name string, value *string) {
	if value == nil {
		buf.WriteString(name)
		buf.WriteByte('=')
		buf.WriteString(nullSentinel)
		buf.WriteByte('\n')
		return
	}
	writeField(buf, name, *value)
}

// writeDetails encodes the details map with sorted keys. Each scalar value
// is rendered as its JSON encoding: ints and the json.Number values that
// come back from storage produce identical text, so a persisted entry
// re-hashes to the same digest it was written with.
func writeDetails(buf *bytes.Buffer, details map[string]any) error {
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf.WriteString("details=")
	buf.WriteString(strconv.Itoa(len(keys)))
	buf.WriteByte('\n')

	for _, key := range keys {
		value := details[key]
		if !models.IsScalarDetail(value) {
			return fmt.Errorf("%w: key %q", ErrUnserializableDetails, key)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrUnserializableDetails, key, err)
		}
		writeField(buf, "d."+key, string(encoded))
	}

	return nil
}
