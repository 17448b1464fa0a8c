package library

import "strings"

var articles = []string{"the", "a", "an"}

// TitleSort moves leading English article to the end: "The Hobbit" becomes
// "Hobbit, The".
func TitleSort(title string) string {
	title = strings.TrimSpace(title)
	first, rest, ok := strings.Cut(title, " ")
	if !ok {
		return title
	}
	for _, a := range articles {
		if strings.EqualFold(first, a) {
			return strings.TrimSpace(rest) + ", " + first
		}
	}
	return title
}

// AuthorSort turns "First Middle Last" into "Last, First Middle". Names
// already containing comma are kept.
func AuthorSort(author string) string {
	author = strings.TrimSpace(author)
	if author == "" || strings.Contains(author, ",") {
		return author
	}
	parts := strings.Fields(author)
	if len(parts) < 2 {
		return author
	}
	return parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
}
