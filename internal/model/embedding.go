package model

type NoteEmbedding struct {
	NoteID      string
	OwnerID     string
	Embedding   []float32
	ContentHash string
	Mtime       int64
}
