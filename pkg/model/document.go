package model

// Document is a user-facing document body, a JSON object.
//
//	"_id" field is reserved for the document ID.
//	"_rev" field is reserved for the document revision.
//	"_deleted" field marks the document as deleted.
//
// All other fields pass through to the backend application opaquely.
type Document map[string]interface{}

const (
	FieldID      = "_id"
	FieldRev     = "_rev"
	FieldDeleted = "_deleted"

	// LocalPrefix marks document IDs that belong to the non-replicated
	// local store instead of the revision ledger.
	LocalPrefix = "_local/"
)

func (d Document) ID() string {
	if v, ok := d[FieldID].(string); ok {
		return v
	}
	return ""
}

func (d Document) Rev() string {
	if v, ok := d[FieldRev].(string); ok {
		return v
	}
	return ""
}

func (d Document) Deleted() bool {
	v, ok := d[FieldDeleted].(bool)
	return ok && v
}

func (d Document) SetID(id string)   { d[FieldID] = id }
func (d Document) SetRev(rev string) { d[FieldRev] = rev }

// IsLocal reports whether the document's ID refers to the local store.
func (d Document) IsLocal() bool {
	return IsLocalID(d.ID())
}

func IsLocalID(id string) bool {
	return len(id) >= len(LocalPrefix) && id[:len(LocalPrefix)] == LocalPrefix
}

// Clone returns a shallow copy of the document. Nested values are shared.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// StripReserved returns a copy of the document with the reserved replication
// fields removed, which is the shape forwarded to the backend application.
func (d Document) StripReserved() Document {
	out := d.Clone()
	delete(out, FieldID)
	delete(out, FieldRev)
	delete(out, FieldDeleted)
	return out
}
