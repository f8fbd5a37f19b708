package domain

// ContextDocument is an analysis text stored in the similarity index.
// Documents are immutable once added; removal happens only through
// explicit filtered deletes.
type ContextDocument struct {
	Text  string
	Token string
	// Timestamp is the creation time in unix milliseconds.
	Timestamp int64
}
