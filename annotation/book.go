package annotation

// Book is an annotated book as reported by the source and matched to the
// library.
type Book struct {
	// BookID is library assigned id, zero until book is matched.
	BookID int64
	// UUID is library stable identifier which survives id renumbering.
	UUID string
	// CID is the id of synthetic clippings book when annotations could not
	// be matched to a real one.
	CID        int64
	Author     string
	AuthorSort string
	Title      string
	TitleSort  string
	Genre      string
	Path       string
	// LastAnnotation is the greatest LastModification of annotations
	// belonging to this book.
	LastAnnotation float64
	Active         bool
}

// Touch advances LastAnnotation, it never goes back.
func (b *Book) Touch(a *Annotation) {
	if a.LastModification > b.LastAnnotation {
		b.LastAnnotation = a.LastModification
	}
}

// TargetID returns id of the library entry which should receive annotations.
func (b *Book) TargetID() int64 {
	if b.BookID != 0 {
		return b.BookID
	}
	return b.CID
}
