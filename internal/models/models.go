package models

// Book represents a catalog entry
type Book struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Document is one external page to publish: a title and the books listed on it
type Document struct {
	Title string
	Books []Book
}

// PageLink points at a published catalog page
type PageLink struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}
