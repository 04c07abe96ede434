package render

// Attr is one ordered key/value attribute. Attribute order is part of
// the rendered output, so attrs are a slice, not a map.
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node is one element of a rendered document tree. Trees produced by
// this package are plain data: writers (XML, JSON) only traverse them.
type Node struct {
	Name     string  `json:"name"`
	Attrs    []Attr  `json:"attrs,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// attr appends an attribute, dropping empty values so absent schema
// attributes never render.
func (n *Node) attr(key, value string) {
	if value == "" {
		return
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
}

// child appends c and returns it.
func (n *Node) child(c *Node) *Node {
	n.Children = append(n.Children, c)
	return c
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(key string) string {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}
