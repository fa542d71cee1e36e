package telegraph

import "fmt"

// Account is a Telegraph account as returned by createAccount
type Account struct {
	ShortName   string `json:"short_name"`
	AuthorName  string `json:"author_name"`
	AuthorURL   string `json:"author_url"`
	AccessToken string `json:"access_token"`
	AuthURL     string `json:"auth_url"`
}

// Page is a published Telegraph page
type Page struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Views       int    `json:"views"`
}

// Node is a content node: either a string or an Element
type Node any

// Element is a DOM element node in Telegraph's content format
type Element struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// PageRequest holds the createPage parameters
type PageRequest struct {
	Title      string
	AuthorName string
	AuthorURL  string
	Content    []Node
}

// APIError is an {"ok": false} response from the Telegraph API
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegraph %s: %s", e.Method, e.Code)
}
