package render

import (
	json "github.com/goccy/go-json"
)

// JSON serializes a rendered tree.
func JSON(n *Node) ([]byte, error) {
	return json.Marshal(n)
}

// JSONIndent serializes a rendered tree for human consumption.
func JSONIndent(n *Node) ([]byte, error) {
	return json.MarshalIndent(n, "", "  ")
}
