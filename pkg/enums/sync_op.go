package enums

// SyncOpKind is the kind of remote cart write waiting in the sync queue.
type SyncOpKind string

const (
	SyncOpUpsert SyncOpKind = "upsert"
	SyncOpDelete SyncOpKind = "delete"
	SyncOpClear  SyncOpKind = "clear"
)

func (k SyncOpKind) String() string {
	return string(k)
}
