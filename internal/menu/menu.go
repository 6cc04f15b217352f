// ABOUTME: Read-only service menu loaded from the "buttons" and "texts" documents
// ABOUTME: Nodes are addressed by index paths so button payloads stay short

package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/2389/handoff-gateway/internal/store"
)

// Document names in the ConfigStore.
const (
	DocumentButtons = "buttons"
	DocumentTexts   = "texts"
)

// RootKey is the buttons entry holding the main menu rows.
const RootKey = "main_menu"

// maxDepth bounds nesting so a self-referencing buttons document terminates.
const maxDepth = 8

// Node is one menu entry. The root has an empty ID and Label.
type Node struct {
	ID    string
	Label string
	Key   string
	Text  string
	Rows  [][]*Node

	parent *Node
}

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether n is the main menu.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Leaf reports whether n has no sub-entries.
func (n *Node) Leaf() bool {
	return len(n.Rows) == 0
}

// Path returns the labels from the main menu down to n.
func (n *Node) Path() []string {
	var path []string
	for cur := n; cur != nil && !cur.IsRoot(); cur = cur.parent {
		path = append([]string{cur.Label}, path...)
	}
	return path
}

// Child finds a direct sub-entry by label, ignoring case and surrounding space.
func (n *Node) Child(label string) (*Node, bool) {
	label = strings.TrimSpace(label)
	for _, row := range n.Rows {
		for _, c := range row {
			if strings.EqualFold(c.Label, label) {
				return c, true
			}
		}
	}
	return nil, false
}

// Menu is an immutable menu tree plus the free-form texts it was built with.
type Menu struct {
	root  *Node
	byID  map[string]*Node
	texts map[string]string
}

// Empty returns a menu without entries.
func Empty() *Menu {
	root := &Node{}
	return &Menu{root: root, byID: map[string]*Node{"": root}, texts: map[string]string{}}
}

// Load reads the buttons and texts documents. Missing documents give an
// empty menu; unreadable or corrupt ones are logged and treated as missing.
func Load(ctx context.Context, backend store.ConfigStore, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "menu")

	buttons := loadDocument(ctx, backend, DocumentButtons, logger)
	texts := loadDocument(ctx, backend, DocumentTexts, logger)

	m, err := Parse(buttons, texts)
	if err != nil {
		logger.Warn("menu documents corrupt, using an empty menu", "error", err)
		return Empty()
	}
	logger.Info("menu loaded", "entries", len(m.byID)-1)
	return m
}

func loadDocument(ctx context.Context, backend store.ConfigStore, name string, logger *slog.Logger) []byte {
	data, err := backend.Load(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		logger.Warn("menu document unreadable", "document", name, "error", err)
		return nil
	}
	return data
}

// Parse builds a menu. buttons maps a key to rows of labels; RootKey holds
// the main menu and any other key holds the sub-entries of the label with
// that Slug. texts maps "service_<key>" to the text shown for an entry.
// Either argument may be empty.
func Parse(buttons, texts []byte) (*Menu, error) {
	rows := map[string][][]string{}
	if len(buttons) > 0 {
		if err := json.Unmarshal(buttons, &rows); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", DocumentButtons, err)
		}
	}
	m := Empty()
	if len(texts) > 0 {
		if err := json.Unmarshal(texts, &m.texts); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", DocumentTexts, err)
		}
		if m.texts == nil {
			m.texts = map[string]string{}
		}
	}

	m.build(m.root, rows[RootKey], rows, 0)
	return m, nil
}

func (m *Menu) build(parent *Node, labels [][]string, all map[string][][]string, depth int) {
	if depth >= maxDepth {
		return
	}
	index := 0
	for _, row := range labels {
		var nodes []*Node
		for _, label := range row {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			id := strconv.Itoa(index)
			index++
			if !parent.IsRoot() {
				id = parent.ID + "." + id
			}
			key := Slug(label)
			n := &Node{
				ID:     id,
				Label:  label,
				Key:    key,
				Text:   m.texts["service_"+key],
				parent: parent,
			}
			nodes = append(nodes, n)
			m.byID[id] = n
		}
		if len(nodes) > 0 {
			parent.Rows = append(parent.Rows, nodes)
		}
	}
	for _, row := range parent.Rows {
		for _, n := range row {
			if sub, ok := all[n.Key]; ok && n.Key != RootKey {
				m.build(n, sub, all, depth+1)
			}
		}
	}
}

// Root returns the main menu.
func (m *Menu) Root() *Node {
	return m.root
}

// Node looks up an entry by ID. The empty ID is the root.
func (m *Menu) Node(id string) (*Node, bool) {
	n, ok := m.byID[id]
	return n, ok
}

// Resolve walks path label by label and returns the deepest entry reached.
func (m *Menu) Resolve(path []string) *Node {
	cur := m.root
	for _, label := range path {
		next, ok := cur.Child(label)
		if !ok {
			break
		}
		cur = next
	}
	return cur
}

// Text returns a free-form text by key, or def when it is not configured.
func (m *Menu) Text(key, def string) string {
	if t, ok := m.texts[key]; ok && t != "" {
		return t
	}
	return def
}

// Slug turns a label into a document key: lower case letters and digits,
// runs of anything else collapsed into one underscore.
func Slug(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
